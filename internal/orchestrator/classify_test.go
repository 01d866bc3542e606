package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyReference(t *testing.T) {
	cases := []struct {
		name    string
		symbol  string
		context string
		want    string
	}{
		{"instantiation", "Widget", "var w = new Widget()", "type-instantiation"},
		{"generic param", "Widget", "List<Widget>", "generic-type-parameter"},
		{"inheritance", "Widget", "class Gadget extends Widget {", "type-inheritance"},
		{"implementation", "Runnable", "class Task implements Comparable, Runnable {", "interface-implementation"},
		{"override", "render", "@Override\n  void render() { }", "method-call"},
		{"type reference", "Widget", "void render(): Widget {", "type-reference"},
		{"call", "render", "widget.render(ctx)", "method-call"},
		{"member access", "width", "return box.width", "method-reference"},
		{"import usage", "Widget", "import Widget;", "method-usage"},
		{"plain usage fallback", "Widget", "the Widget subsystem handles layout", "usage"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, classifyReference(c.symbol, c.context))
		})
	}
}

func TestClassifyReference_OrderPrefersMostSpecific(t *testing.T) {
	// "new Widget()" would also satisfy method-call's bare "(name)(" rule;
	// type-instantiation must win since it is checked first.
	assert.Equal(t, "type-instantiation", classifyReference("Widget", "new Widget()"))
}
