package units

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Vector maps base dimension names to their exponents. Zero exponents are
// never stored, so an empty Vector is dimensionless.
type Vector map[string]int

// Equal reports whether v and o have identical exponents.
func (v Vector) Equal(o Vector) bool {
	if len(v) != len(o) {
		return false
	}
	for k, e := range v {
		if o[k] != e {
			return false
		}
	}
	return true
}

func (v Vector) add(o Vector, times int) {
	for k, e := range o {
		n := v[k] + e*times
		if n == 0 {
			delete(v, k)
		} else {
			v[k] = n
		}
	}
}

// String formats v as "length^-1" style factors in name order.
func (v Vector) String() string {
	if len(v) == 0 {
		return "dimensionless"
	}
	names := make([]string, 0, len(v))
	for k := range v {
		names = append(names, k)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, k := range names {
		if v[k] == 1 {
			parts[i] = k
		} else {
			parts[i] = fmt.Sprintf("%s^%d", k, v[k])
		}
	}
	return strings.Join(parts, "*")
}

// Unit is a parsed unit expression.
type Unit struct {
	Expr  string
	Scale float64 // relative to the coherent unit of Dims
	Dims  Vector
}

// Parse reduces a unit expression such as "1/angstrom", "nm^-1", "keV" or
// "kg*m^2/s^2" to a scale and dimension vector. Terms are separated by "*",
// "/" or spaces; a "/" divides by the single term that follows it.
func (r *Registry) Parse(expr string) (Unit, error) {
	toks, err := tokenize(expr)
	if err != nil {
		return Unit{}, err
	}
	if len(toks) == 0 {
		return Unit{}, fmt.Errorf("%w: empty expression", ErrUnparsable)
	}

	u := Unit{Expr: expr, Scale: 1, Dims: Vector{}}
	sign := 1
	wantTerm := true
	for _, tok := range toks {
		if tok == "*" || tok == "/" {
			if wantTerm {
				return Unit{}, fmt.Errorf("%w: %q: unexpected %q", ErrUnparsable, expr, tok)
			}
			if tok == "/" {
				sign = -1
			}
			wantTerm = true
			continue
		}

		scale, dims, err := r.term(tok)
		if err != nil {
			return Unit{}, fmt.Errorf("%w: %q: %v", ErrUnparsable, expr, err)
		}
		u.Scale *= math.Pow(scale, float64(sign))
		u.Dims.add(dims, sign)
		sign = 1
		wantTerm = false
	}
	if wantTerm {
		return Unit{}, fmt.Errorf("%w: %q: trailing operator", ErrUnparsable, expr)
	}
	return u, nil
}

// term resolves one "symbol^exp" factor.
func (r *Registry) term(tok string) (float64, Vector, error) {
	sym, exp := tok, 1
	if i := strings.Index(tok, "**"); i >= 0 {
		sym = tok[:i]
		n, err := parseExponent(tok[i+2:])
		if err != nil {
			return 0, nil, err
		}
		exp = n
	} else if i := strings.IndexByte(tok, '^'); i >= 0 {
		sym = tok[:i]
		n, err := parseExponent(tok[i+1:])
		if err != nil {
			return 0, nil, err
		}
		exp = n
	}
	if sym == "" {
		return 0, nil, fmt.Errorf("missing symbol in %q", tok)
	}

	if v, err := strconv.ParseFloat(sym, 64); err == nil {
		if v <= 0 {
			return 0, nil, fmt.Errorf("non-positive factor %q", sym)
		}
		return math.Pow(v, float64(exp)), Vector{}, nil
	}

	scale, dims, ok := r.lookup(sym)
	if !ok {
		return 0, nil, fmt.Errorf("unknown unit %q", sym)
	}
	out := Vector{}
	out.add(dims, exp)
	return math.Pow(scale, float64(exp)), out, nil
}

// lookup finds sym directly or as an SI prefix on a prefixable unit.
func (r *Registry) lookup(sym string) (float64, Vector, bool) {
	if def, ok := r.units[sym]; ok {
		return def.scale, def.dims, true
	}
	for _, p := range r.prefixes {
		rest, found := strings.CutPrefix(sym, p.symbol)
		if !found || rest == "" {
			continue
		}
		if def, ok := r.units[rest]; ok && def.prefixable {
			return p.scale * def.scale, def.dims, true
		}
	}
	return 0, nil, false
}

func parseExponent(s string) (int, error) {
	s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad exponent %q", s)
	}
	return n, nil
}

// tokenize splits an expression into terms and the operators "*" and "/".
// "**" stays inside its term as the power operator.
func tokenize(expr string) ([]string, error) {
	s := strings.TrimSpace(expr)
	var toks []string
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '/':
			toks = append(toks, "/")
			i++
		case c == '*' && !strings.HasPrefix(s[i:], "**"):
			toks = append(toks, "*")
			i++
		case c == '(' || c == ')':
			return nil, fmt.Errorf("%w: %q: parentheses are not supported", ErrUnparsable, expr)
		default:
			j := i
			for j < len(s) {
				if s[j] == ' ' || s[j] == '\t' || s[j] == '/' {
					break
				}
				if s[j] == '*' {
					if strings.HasPrefix(s[j:], "**") {
						j += 2
						continue
					}
					break
				}
				if s[j] == '^' && j+1 < len(s) && s[j+1] == '(' {
					// "^(-1)" is an exponent, not grouping.
					end := strings.IndexByte(s[j:], ')')
					if end < 0 {
						return nil, fmt.Errorf("%w: %q: unclosed exponent", ErrUnparsable, expr)
					}
					j += end + 1
					continue
				}
				if s[j] == '(' || s[j] == ')' {
					return nil, fmt.Errorf("%w: %q: parentheses are not supported", ErrUnparsable, expr)
				}
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		}
	}
	return toks, nil
}
