package command

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/danmuck/iggywire/internal/protocol/wire"
	"github.com/rs/zerolog/log"
)

var (
	ErrCommandExists     = errors.New("command: code already registered")
	ErrInvalidDescriptor = errors.New("command: invalid descriptor")
)

// DecodeFunc decodes one payload into ordered fields. A non-nil error is the
// fault that stopped decoding; the returned fields are still the partial result.
type DecodeFunc func(payload []byte) (wire.Fields, error)

// Descriptor binds a command code to its name and payload layouts. A nil decoder
// means the layout is unknown and the payload is reported as opaque bytes.
type Descriptor struct {
	Code     uint32
	Name     string
	Request  DecodeFunc
	Response DecodeFunc
}

// Catalog is an immutable code -> descriptor lookup. It is safe for concurrent use.
type Catalog struct {
	items map[uint32]Descriptor
}

// NewCatalog validates and indexes descs.
func NewCatalog(descs ...Descriptor) (*Catalog, error) {
	c := &Catalog{items: make(map[uint32]Descriptor, len(descs))}
	for _, d := range descs {
		if err := c.add(d); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) add(d Descriptor) error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: code %d has no name", ErrInvalidDescriptor, d.Code)
	}
	if prev, ok := c.items[d.Code]; ok {
		return fmt.Errorf("%w: %d (%s, %s)", ErrCommandExists, d.Code, prev.Name, d.Name)
	}
	c.items[d.Code] = d
	return nil
}

// Extend returns a new catalog holding c's descriptors plus descs. c is unchanged.
func (c *Catalog) Extend(descs ...Descriptor) (*Catalog, error) {
	next := &Catalog{items: make(map[uint32]Descriptor, len(c.items)+len(descs))}
	for code, d := range c.items {
		next.items[code] = d
	}
	for _, d := range descs {
		if err := next.add(d); err != nil {
			return nil, err
		}
	}
	return next, nil
}

// Lookup resolves a command code.
func (c *Catalog) Lookup(code uint32) (Descriptor, bool) {
	d, ok := c.items[code]
	if !ok {
		log.Debug().Uint32("code", code).Msg("command.Catalog.Lookup unknown code")
	}
	return d, ok
}

// Name returns the command name for code, or "" when unknown.
func (c *Catalog) Name(code uint32) string {
	return c.items[code].Name
}

func (c *Catalog) Len() int {
	return len(c.items)
}

// List returns descriptors ordered by code.
func (c *Catalog) List() []Descriptor {
	out := make([]Descriptor, 0, len(c.items))
	for _, d := range c.items {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Code < out[j].Code
	})
	return out
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the built-in catalog. It is built once and shared.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := NewCatalog(builtin()...)
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}
