package node_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deltaflow/deltaflow/node"
)

type constBody struct {
	node.BodyBase
}

func (constBody) RunOnce(node.ConstantIO) error { return nil }

type runningBody struct {
	node.BodyBase
}

func (runningBody) WorkerEntry(node.WorkerIO) error { return nil }

type plainBody struct {
	node.BodyBase
}

func TestKindString(t *testing.T) {
	require.Equal(t, "running", node.Running.String())
	require.Equal(t, "constant", node.Constant.String())
	require.Equal(t, "splitter", node.Splitter.String())
	require.Equal(t, "template", node.Template.String())
	require.Equal(t, "unknown", node.Kind(99).String())
}

func TestTemplateBodyDefaultSelection(t *testing.T) {
	tb := node.NewTemplateBody(map[string]node.Body{
		"a": constBody{},
		"b": runningBody{},
	}, "a")
	b, name := tb.Selected()
	require.Equal(t, "a", name)
	require.Equal(t, constBody{}, b)
}

func TestTemplateBodySelectUnknownLeavesSelectionUnchanged(t *testing.T) {
	tb := node.NewTemplateBody(map[string]node.Body{"a": constBody{}}, "a")
	require.False(t, tb.Select("missing"))
	_, name := tb.Selected()
	require.Equal(t, "a", name)
}

func TestTemplateBodySelectSwitchesActiveBody(t *testing.T) {
	tb := node.NewTemplateBody(map[string]node.Body{
		"a": constBody{},
		"b": runningBody{},
	}, "a")
	require.True(t, tb.Select("b"))
	b, name := tb.Selected()
	require.Equal(t, "b", name)
	require.Equal(t, runningBody{}, b)
}

func TestNewTemplateBodyPanicsOnEmptyRegistry(t *testing.T) {
	require.Panics(t, func() { node.NewTemplateBody(nil, "a") })
}

func TestNewTemplateBodyPanicsOnUnknownDefault(t *testing.T) {
	require.Panics(t, func() {
		node.NewTemplateBody(map[string]node.Body{"a": constBody{}}, "b")
	})
}

func TestHandleNeedsBodyForUnselectedTemplate(t *testing.T) {
	h := &node.Handle{Kind: node.Template}
	require.True(t, h.NeedsBody())
}

func TestHandleNeedsBodyFalseForRunningWithBody(t *testing.T) {
	h := &node.Handle{Kind: node.Running, Body: runningBody{}}
	require.False(t, h.NeedsBody())
}

func TestHandleEffectiveKindResolvesTemplateToConstant(t *testing.T) {
	tb := node.NewTemplateBody(map[string]node.Body{"a": constBody{}}, "a")
	h := &node.Handle{Kind: node.Template, Template: tb}
	require.Equal(t, node.Constant, h.EffectiveKind())
}

func TestHandleEffectiveKindResolvesTemplateToRunning(t *testing.T) {
	tb := node.NewTemplateBody(map[string]node.Body{"a": runningBody{}}, "a")
	h := &node.Handle{Kind: node.Template, Template: tb}
	require.Equal(t, node.Running, h.EffectiveKind())
}

func TestHandleEffectiveKindPassesThroughNonTemplate(t *testing.T) {
	h := &node.Handle{Kind: node.Running}
	require.Equal(t, node.Running, h.EffectiveKind())
}

func TestConstantBodyOfAndRunningBodyOf(t *testing.T) {
	h := &node.Handle{Kind: node.Constant, Body: constBody{}}
	cb, ok := h.ConstantBodyOf()
	require.True(t, ok)
	require.NotNil(t, cb)
	_, ok = h.RunningBodyOf()
	require.False(t, ok)

	h2 := &node.Handle{Kind: node.Running, Body: runningBody{}}
	rb, ok := h2.RunningBodyOf()
	require.True(t, ok)
	require.NotNil(t, rb)
}

func TestPlainBodyIsNeitherConstantNorRunning(t *testing.T) {
	h := &node.Handle{Kind: node.Running, Body: plainBody{}}
	_, ok := h.ConstantBodyOf()
	require.False(t, ok)
	_, ok = h.RunningBodyOf()
	require.False(t, ok)
}
