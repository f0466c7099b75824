// Package tap is a transparent TCP proxy that decodes both directions of every
// proxied connection while forwarding the bytes unchanged.
//
// Each accepted connection gets its own session.Session. Client bytes are fed to
// the session before they are forwarded upstream, so a response can never be
// decoded ahead of the request it answers.
package tap
