package featurize

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/pharmalnet/dti/pkg/errors"
)

const (
	MorganName   = "Morgan"
	MorganBits   = 1024
	MorganRadius = 2
)

type atom struct {
	symbol   string
	aromatic bool
	charge   int
	hCount   int
}

type bond struct {
	to    int
	order uint8 // 1 single, 2 double, 3 triple, 4 aromatic
}

type molecule struct {
	atoms     []atom
	neighbors [][]bond
}

func (m *molecule) addBond(a, b int, order uint8) {
	m.neighbors[a] = append(m.neighbors[a], bond{to: b, order: order})
	m.neighbors[b] = append(m.neighbors[b], bond{to: a, order: order})
}

var organicSubset = []string{"Cl", "Br", "B", "C", "N", "O", "P", "S", "F", "I", "b", "c", "n", "o", "p", "s"}

// parseSMILES builds the atom graph of a SMILES string. Stereo marks are accepted and ignored.
func parseSMILES(smiles string) (*molecule, error) {
	m := &molecule{}
	var (
		prev      = -1
		pending   uint8
		branches  []int
		ringOpen  = map[int]bond{}
		invalidAt = func(i int, why string) error {
			return errors.NewValueError(MorganName, fmt.Sprintf("invalid SMILES %q at %d: %s", smiles, i, why))
		}
	)

	addAtom := func(a atom) {
		m.atoms = append(m.atoms, a)
		m.neighbors = append(m.neighbors, nil)
		idx := len(m.atoms) - 1
		if prev >= 0 {
			order := pending
			if order == 0 {
				order = 1
				if a.aromatic && m.atoms[prev].aromatic {
					order = 4
				}
			}
			m.addBond(prev, idx, order)
		}
		prev = idx
		pending = 0
	}

	for i := 0; i < len(smiles); {
		ch := smiles[i]
		switch {
		case ch == '(':
			if prev < 0 {
				return nil, invalidAt(i, "branch without atom")
			}
			branches = append(branches, prev)
			i++
		case ch == ')':
			if len(branches) == 0 {
				return nil, invalidAt(i, "unbalanced parenthesis")
			}
			prev = branches[len(branches)-1]
			branches = branches[:len(branches)-1]
			i++
		case ch == '-' || ch == '=' || ch == '#' || ch == '$' || ch == ':':
			pending = map[byte]uint8{'-': 1, '=': 2, '#': 3, '$': 3, ':': 4}[ch]
			i++
		case ch == '/' || ch == '\\':
			pending = 1
			i++
		case ch == '.':
			prev = -1
			pending = 0
			i++
		case ch == '%' || (ch >= '0' && ch <= '9'):
			if prev < 0 {
				return nil, invalidAt(i, "ring closure without atom")
			}
			num := int(ch - '0')
			width := 1
			if ch == '%' {
				if i+2 >= len(smiles) {
					return nil, invalidAt(i, "truncated ring number")
				}
				num = int(smiles[i+1]-'0')*10 + int(smiles[i+2]-'0')
				width = 3
			}
			if open, ok := ringOpen[num]; ok {
				order := pending
				if order == 0 {
					order = open.order
				}
				if order == 0 {
					order = 1
					if m.atoms[open.to].aromatic && m.atoms[prev].aromatic {
						order = 4
					}
				}
				m.addBond(open.to, prev, order)
				delete(ringOpen, num)
			} else {
				ringOpen[num] = bond{to: prev, order: pending}
			}
			pending = 0
			i += width
		case ch == '[':
			end := strings.IndexByte(smiles[i:], ']')
			if end < 0 {
				return nil, invalidAt(i, "unterminated bracket atom")
			}
			a, err := parseBracketAtom(smiles[i+1 : i+end])
			if err != nil {
				return nil, invalidAt(i, err.Error())
			}
			addAtom(a)
			i += end + 1
		default:
			matched := false
			for _, sym := range organicSubset {
				if strings.HasPrefix(smiles[i:], sym) {
					addAtom(atom{symbol: strings.ToUpper(sym[:1]) + sym[1:], aromatic: sym[0] >= 'a'})
					i += len(sym)
					matched = true
					break
				}
			}
			if !matched {
				return nil, invalidAt(i, fmt.Sprintf("unexpected character %q", ch))
			}
		}
	}

	switch {
	case len(m.atoms) == 0:
		return nil, errors.NewValueError(MorganName, "empty SMILES")
	case len(branches) > 0:
		return nil, invalidAt(len(smiles), "unbalanced parenthesis")
	case len(ringOpen) > 0:
		return nil, invalidAt(len(smiles), "unclosed ring")
	}
	return m, nil
}

// parseBracketAtom reads the inside of [...]: isotope, symbol, chirality, hydrogens, charge.
func parseBracketAtom(s string) (atom, error) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i >= len(s) {
		return atom{}, fmt.Errorf("bracket atom without symbol")
	}
	var a atom
	switch {
	case s[i] >= 'A' && s[i] <= 'Z':
		j := i + 1
		if j < len(s) && s[j] >= 'a' && s[j] <= 'z' {
			j++
		}
		a.symbol = s[i:j]
		i = j
	case s[i] >= 'a' && s[i] <= 'z':
		j := i + 1
		if j < len(s) && s[j] >= 'a' && s[j] <= 'z' {
			j++
		}
		a.symbol = strings.ToUpper(s[i:i+1]) + s[i+1:j]
		a.aromatic = true
		i = j
	default:
		return atom{}, fmt.Errorf("bracket atom without symbol")
	}
	for i < len(s) && s[i] == '@' {
		i++
	}
	if i < len(s) && s[i] == 'H' {
		a.hCount = 1
		i++
		if i < len(s) && s[i] >= '0' && s[i] <= '9' {
			a.hCount = int(s[i] - '0')
			i++
		}
	}
	for i < len(s) {
		switch s[i] {
		case '+':
			a.charge++
		case '-':
			a.charge--
		default:
			if s[i] >= '0' && s[i] <= '9' && a.charge != 0 {
				n := int(s[i] - '0')
				if a.charge > 0 {
					a.charge = n
				} else {
					a.charge = -n
				}
			}
		}
		i++
	}
	return a, nil
}

// Morgan is a hashed circular fingerprint: each atom starts from an invariant of its
// element, degree, charge, hydrogens and aromaticity, and is refined Radius times from
// its neighbours' identifiers. Every identifier sets one bit of a Bits-wide vector.
type Morgan struct {
	Bits   int
	Radius int
}

// NewMorgan returns a Morgan encoder.
func NewMorgan(bits, radius int) Morgan {
	return Morgan{Bits: bits, Radius: radius}
}

func (Morgan) Name() string { return MorganName }
func (m Morgan) Dim() int   { return m.Bits }

func (m Morgan) Encode(smiles string) ([]float64, error) {
	mol, err := parseSMILES(strings.TrimSpace(smiles))
	if err != nil {
		return nil, err
	}

	v := make([]float64, m.Bits)
	ids := make([]uint64, len(mol.atoms))
	for i, a := range mol.atoms {
		ids[i] = atomInvariant(a, len(mol.neighbors[i]))
		v[ids[i]%uint64(m.Bits)] = 1
	}

	buf := make([]byte, 0, 64)
	for r := 0; r < m.Radius; r++ {
		next := make([]uint64, len(ids))
		for i := range mol.atoms {
			env := make([][2]uint64, 0, len(mol.neighbors[i]))
			for _, b := range mol.neighbors[i] {
				env = append(env, [2]uint64{uint64(b.order), ids[b.to]})
			}
			sort.Slice(env, func(x, y int) bool {
				if env[x][0] != env[y][0] {
					return env[x][0] < env[y][0]
				}
				return env[x][1] < env[y][1]
			})
			buf = binary.LittleEndian.AppendUint64(buf[:0], uint64(r+1))
			buf = binary.LittleEndian.AppendUint64(buf, ids[i])
			for _, e := range env {
				buf = binary.LittleEndian.AppendUint64(buf, e[0])
				buf = binary.LittleEndian.AppendUint64(buf, e[1])
			}
			next[i] = xxhash.Sum64(buf)
			v[next[i]%uint64(m.Bits)] = 1
		}
		ids = next
	}
	return v, nil
}

func atomInvariant(a atom, degree int) uint64 {
	d := xxhash.New()
	_, _ = fmt.Fprintf(d, "%s|%d|%d|%d|%t", a.symbol, degree, a.charge, a.hCount, a.aromatic)
	return d.Sum64()
}
