package model

import (
	"encoding/json"
	"os"
	"slices"

	"github.com/pkg/errors"
	"github.com/sw965/ebm/unit"
)

// State is the flat named-array form of a model.
type State struct {
	Kind   string               `json:"kind"`
	Ints   map[string]int       `json:"ints"`
	Units  map[string]string    `json:"units"`
	Arrays map[string][]float32 `json:"arrays"`
	Shapes map[string][]int     `json:"shapes"`
}

func NewState(kind string) State {
	return State{
		Kind:   kind,
		Ints:   map[string]int{},
		Units:  map[string]string{},
		Arrays: map[string][]float32{},
		Shapes: map[string][]int{},
	}
}

func (s State) CheckKind(kind string) error {
	if s.Kind != kind {
		return configf("state kind %q, want %q", s.Kind, kind)
	}
	return nil
}

func (s State) Int(key string) (int, error) {
	v, ok := s.Ints[key]
	if !ok {
		return 0, configf("state: missing int %q", key)
	}
	return v, nil
}

// Unit re-resolves a unit stored by name.
func (s State) Unit(key string) (unit.Kind, error) {
	name, ok := s.Units[key]
	if !ok {
		return 0, configf("state: missing unit %q", key)
	}
	k, err := unit.Parse(name)
	if err != nil {
		return 0, configf("state: %s: %v", key, err)
	}
	return k, nil
}

// Array returns a copy of the array stored under key, checking its length.
func (s State) Array(key string, n int) ([]float32, error) {
	a, ok := s.Arrays[key]
	if !ok {
		return nil, configf("state: missing array %q", key)
	}
	if err := CheckLen(key, a, n); err != nil {
		return nil, err
	}
	return slices.Clone(a), nil
}

func (s State) SaveJSON(path string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "state: marshal")
	}
	return errors.Wrap(os.WriteFile(path, b, 0644), "state: write")
}

func LoadStateJSON(path string) (State, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return State{}, errors.Wrap(err, "state: read")
	}
	var s State
	if err := json.Unmarshal(b, &s); err != nil {
		return State{}, errors.Wrap(err, "state: unmarshal")
	}
	return s, nil
}

func deltaKey(key string) string {
	return "d" + key
}

// Export writes the unit names, parameters and deltas of m into s.
func (m *Machine) Export(s *State) {
	s.Units[m.hidden.Name+"type"] = m.hidden.Unit.String()
	for i, l := range m.layers {
		s.Units[l.Name+"type"] = l.Unit.String()
		w := m.param.Weights[i]
		s.Arrays[l.Weight] = slices.Clone(w.Data)
		s.Arrays[deltaKey(l.Weight)] = slices.Clone(m.delta.Weights[i].Data)
		s.Shapes[l.Weight] = []int{w.Rows, w.Cols}
	}
	all := append(m.Layers(), m.hidden)
	for i, l := range all {
		s.Arrays[l.Bias] = slices.Clone(m.param.Biases[i].Data)
		s.Arrays[deltaKey(l.Bias)] = slices.Clone(m.delta.Biases[i].Data)
	}
}

// Import loads parameters and deltas from s. A missing delta array restores
// as zeros.
func (m *Machine) Import(s State) error {
	param := m.param.NewZerosLike()
	delta := m.delta.NewZerosLike()
	for i, l := range m.layers {
		n := len(param.Weights[i].Data)
		data, err := s.Array(l.Weight, n)
		if err != nil {
			return err
		}
		param.Weights[i].Data = data
		if _, ok := s.Arrays[deltaKey(l.Weight)]; ok {
			if delta.Weights[i].Data, err = s.Array(deltaKey(l.Weight), n); err != nil {
				return err
			}
		}
	}
	all := append(m.Layers(), m.hidden)
	for i, l := range all {
		n := param.Biases[i].N
		data, err := s.Array(l.Bias, n)
		if err != nil {
			return err
		}
		param.Biases[i].Data = data
		if _, ok := s.Arrays[deltaKey(l.Bias)]; ok {
			if delta.Biases[i].Data, err = s.Array(deltaKey(l.Bias), n); err != nil {
				return err
			}
		}
	}
	return m.Update(param, delta)
}
