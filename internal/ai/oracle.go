package ai

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/kamiapp/kami/internal/model"
)

// Oracle is the built-in Generator: deterministic, offline, in character.
// It is the default when no external provider is configured, which keeps
// the chat feature demoable (and testable) without network access or keys.
//
// Replies are picked from a small pool of god-voiced counsel, keyed by a
// hash of the god and the message, so the same question to the same god
// always receives the same oracle — close enough to divine consistency.
type Oracle struct{}

// NewOracle returns the canned generator.
func NewOracle() *Oracle {
	return &Oracle{}
}

var counsel = [...]string{
	"そなたの悩み、確かに聞き届けた。焦らず一歩ずつ進むがよい。",
	"迷いは心の霧にすぎぬ。朝日が昇れば道は自ずと見えよう。",
	"努力する者に神は微笑む。今日の一歩を惜しんではならぬ。",
	"案ずるな。そなたの選んだ道こそが、そなたの道となる。",
	"よくぞ参った。その問いの答えは、すでにそなたの内にある。",
}

// Reply returns an in-character response. The god's power level lengthens
// the blessing appended to the counsel; history depth deepens the greeting.
func (o *Oracle) Reply(ctx context.Context, god *model.God, message string, history []model.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	h := fnv.New32a()
	h.Write([]byte(god.ID))
	h.Write([]byte(message))
	chosen := counsel[h.Sum32()%uint32(len(counsel))]

	if len(history) > 0 {
		return fmt.Sprintf("再び参ったか。%s ── %s", chosen, god.Name), nil
	}
	if god.PowerLevel >= 5 {
		return fmt.Sprintf("%s 我が力、そなたと共にあらん。── %s", chosen, god.Name), nil
	}
	return fmt.Sprintf("%s ── %s", chosen, god.Name), nil
}
