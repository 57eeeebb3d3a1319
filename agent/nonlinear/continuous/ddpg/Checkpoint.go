package ddpg

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"gorgonia.org/tensor"
)

// Weight is a gob-encodable copy of a single parameter tensor
type Weight struct {
	Shape []int
	Data  []float64
}

// Checkpoint holds copies of the weights of the four networks of a DDPG
// agent
type Checkpoint struct {
	Actor        []Weight
	ActorTarget  []Weight
	Critic       []Weight
	CriticTarget []Weight
}

func toWeights(tensors []*tensor.Dense) []Weight {
	weights := make([]Weight, len(tensors))
	for i, t := range tensors {
		weights[i] = Weight{
			Shape: append([]int(nil), t.Shape()...),
			Data:  append([]float64(nil), t.Data().([]float64)...),
		}
	}
	return weights
}

func toTensors(weights []Weight) []*tensor.Dense {
	tensors := make([]*tensor.Dense, len(weights))
	for i, w := range weights {
		tensors[i] = tensor.New(
			tensor.WithShape(w.Shape...),
			tensor.WithBacking(append([]float64(nil), w.Data...)),
		)
	}
	return tensors
}

// Checkpoint returns a copy of the agent's weights
func (d *DDPG) Checkpoint() Checkpoint {
	return Checkpoint{
		Actor:        toWeights(d.actor.Weights()),
		ActorTarget:  toWeights(d.actorTarget.Weights()),
		Critic:       toWeights(d.critic.Weights()),
		CriticTarget: toWeights(d.criticTarget.Weights()),
	}
}

// Restore sets the agent's weights to those of a checkpoint taken from
// an agent with the same architecture
func (d *DDPG) Restore(c Checkpoint) error {
	for _, w := range [][]Weight{c.Actor, c.ActorTarget, c.Critic,
		c.CriticTarget} {
		for i := range w {
			size := 1
			for _, dim := range w[i].Shape {
				size *= dim
			}
			if size != len(w[i].Data) {
				return fmt.Errorf("restore: weight %d has shape %v but %d "+
					"elements: %w", i, w[i].Shape, len(w[i].Data),
					ErrShapeMismatch)
			}
		}
	}

	if err := d.actor.SetWeights(toTensors(c.Actor)); err != nil {
		return fmt.Errorf("restore: actor: %w", err)
	}
	if err := d.actorTarget.SetWeights(toTensors(c.ActorTarget)); err != nil {
		return fmt.Errorf("restore: actor target: %w", err)
	}
	if err := d.critic.SetWeights(toTensors(c.Critic)); err != nil {
		return fmt.Errorf("restore: critic: %w", err)
	}
	if err := d.criticTarget.SetWeights(toTensors(c.CriticTarget)); err != nil {
		return fmt.Errorf("restore: critic target: %w", err)
	}
	return nil
}

// MarshalCheckpoint gob-encodes the agent's current weights
func (d *DDPG) MarshalCheckpoint() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(d.Checkpoint()); err != nil {
		return nil, fmt.Errorf("marshalCheckpoint: %v", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalCheckpoint restores weights encoded by MarshalCheckpoint
func (d *DDPG) UnmarshalCheckpoint(data []byte) error {
	var c Checkpoint
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&c); err != nil {
		return fmt.Errorf("unmarshalCheckpoint: %v", err)
	}
	return d.Restore(c)
}
