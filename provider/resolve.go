package provider

import (
	"fmt"
	"strings"

	"github.com/casualjim/hoot/failure"
	"github.com/casualjim/hoot/internal/registry"
)

// Family names a vendor adapter.
type Family string

const (
	OpenAI    Family = "openai"
	Anthropic Family = "anthropic"
	Groq      Family = "groq"
)

// Families lists every family in resolution order.
func Families() []Family {
	return []Family{Groq, Anthropic, OpenAI}
}

var groqAliases = map[string]struct{}{
	"llama":                   {},
	"llama-3.1-70b":           {},
	"llama-3.1-70b-versatile": {},
}

// FamilyOf routes a model identifier to a vendor. Unknown identifiers go to OpenAI.
func FamilyOf(model string) Family {
	m := strings.ToLower(strings.TrimSpace(model))
	if _, ok := groqAliases[m]; ok {
		return Groq
	}
	if strings.HasPrefix(m, "claude") {
		return Anthropic
	}
	return OpenAI
}

// Constructor builds the adapter of one family.
type Constructor func(Credentials) (Adapter, error)

// Resolver maps model identifiers to adapters, building each family's adapter once.
type Resolver struct {
	creds        Credentials
	constructors map[Family]Constructor
	adapters     registry.Registry[Adapter]
}

// NewResolver creates a resolver over the given constructors.
func NewResolver(creds Credentials, constructors map[Family]Constructor) *Resolver {
	cs := make(map[Family]Constructor, len(constructors))
	for f, c := range constructors {
		cs[f] = c
	}
	return &Resolver{
		creds:        creds,
		constructors: cs,
		adapters:     registry.New[Adapter](),
	}
}

// Resolve returns the adapter for model. A failure to build it is a
// model_init_error.
func (r *Resolver) Resolve(model string) (Adapter, error) {
	family := FamilyOf(model)
	return r.adapters.GetOrCreate(string(family), func() (Adapter, error) {
		a, err := r.build(family)
		if err != nil {
			return nil, failure.Wrap(failure.ModelInit, fmt.Sprintf("Failed to initialize model %s", model), err)
		}
		return a, nil
	})
}

// Cached lists the families whose adapter has been built.
func (r *Resolver) Cached() []Family {
	names := r.adapters.Names()
	out := make([]Family, len(names))
	for i, n := range names {
		out[i] = Family(n)
	}
	return out
}

func (r *Resolver) build(family Family) (a Adapter, err error) {
	ctor, ok := r.constructors[family]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for %s", family)
	}

	defer func() {
		if p := recover(); p != nil {
			a, err = nil, fmt.Errorf("%s adapter constructor panicked: %v", family, p)
		}
	}()

	a, err = ctor(r.creds)
	if err == nil && a == nil {
		err = fmt.Errorf("%s adapter constructor returned nil", family)
	}
	return a, err
}
