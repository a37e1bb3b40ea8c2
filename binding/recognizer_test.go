package binding_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delaneyj/bindparty/binding"
)

func TestRecognizeDefaultPatterns(t *testing.T) {
	r := binding.NewCommandRecognizer()
	tests := []struct {
		attr    string
		target  string
		command string
	}{
		{"value.bind", "value", binding.CommandBind},
		{"value.two-way", "value", binding.CommandTwoWay},
		{"title.one-time", "title", binding.CommandOneTime},
		{"text.to-view", "text", binding.CommandToView},
		{"checked.from-view", "checked", binding.CommandFromView},
		{"click.trigger", "click", binding.CommandTrigger},
		{":value", "value", binding.CommandBind},
		{"@click", "click", binding.CommandTrigger},
		{"aria.label.bind", "aria.label", binding.CommandBind},
	}
	for _, tt := range tests {
		t.Run(tt.attr, func(t *testing.T) {
			m, err := r.Recognize(tt.attr)
			require.NoError(t, err)
			assert.Equal(t, tt.target, m.Target())
			assert.Equal(t, tt.command, m.Command)
		})
	}

	_, err := r.Recognize("class")
	assert.ErrorIs(t, err, binding.ErrNoPatternMatch)
}

func TestRecognizeMostSpecificPatternWins(t *testing.T) {
	r := binding.NewCommandRecognizer()
	r.MustRegister("value.PART", "value-command")

	m, err := r.Recognize("value.bind")
	require.NoError(t, err)
	assert.Equal(t, "value-command", m.Command)
	assert.Equal(t, []string{"bind"}, m.Parts)

	m, err = r.Recognize("title.bind")
	require.NoError(t, err)
	assert.Equal(t, binding.CommandBind, m.Command)
}

func TestRecognizeAmbiguousPatterns(t *testing.T) {
	r := binding.NewCommandRecognizer()
	require.NoError(t, r.Register("PART.x", "left"))
	require.NoError(t, r.Register("x.PART", "right"))

	_, err := r.Recognize("x.x")
	assert.ErrorIs(t, err, binding.ErrAmbiguousPattern)

	assert.ErrorIs(t, r.Register("PART.bind", "again"), binding.ErrAmbiguousPattern)
	assert.Panics(t, func() { r.MustRegister("@PART", "again") })
}

func TestRegisterRejectsInvalidPatterns(t *testing.T) {
	r := binding.NewCommandRecognizer()
	assert.ErrorIs(t, r.Register("static", "cmd"), binding.ErrInvalidPattern)
	assert.ErrorIs(t, r.Register("PARTPART", "cmd"), binding.ErrInvalidPattern)
	assert.ErrorIs(t, r.Register("PART.go", ""), binding.ErrInvalidPattern)
}

func TestModeFor(t *testing.T) {
	m, ok := binding.ModeFor(binding.CommandBind, binding.TwoWay)
	require.True(t, ok)
	assert.Equal(t, binding.TwoWay, m)

	m, ok = binding.ModeFor(binding.CommandOneTime, binding.TwoWay)
	require.True(t, ok)
	assert.Equal(t, binding.OneTime, m)

	_, ok = binding.ModeFor(binding.CommandTrigger, binding.ToView)
	assert.False(t, ok)
}
