// Package wire holds the little-endian field primitives every payload layout is built from.
package wire
