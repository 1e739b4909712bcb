package replay

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, script string) ([]Step, []int64) {
	t.Helper()
	s, err := Load(strings.NewReader(script))
	require.NoError(t, err)
	steps, _, err := Run(context.Background(), s, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	counts := make([]int64, len(steps))
	for i, st := range steps {
		counts[i] = st.StepsToday
	}
	return steps, counts
}

func TestRun_RebootMidDay(t *testing.T) {
	_, counts := run(t, `
readings:
  - {day: "2024-01-01", raw: 500}
  - {day: "2024-01-01", raw: 520}
  - {day: "2024-01-01", raw: 480}
  - {day: "2024-01-01", raw: 540}
`)
	assert.Equal(t, []int64{0, 20, 500, 560}, counts)
}

func TestRun_NewDayStartsFromBaseline(t *testing.T) {
	s, err := Load(strings.NewReader(`
initial: {currentDay: "2024-01-01", stepsToday: 1000, lastSensorValue: 1000}
readings:
  - {day: "2024-01-02", raw: 1050}
  - {day: "2024-01-02", raw: 1100}
`))
	require.NoError(t, err)

	steps, final, err := Run(context.Background(), s, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), steps[0].StepsToday)
	assert.Equal(t, int64(50), steps[1].StepsToday)
	assert.Equal(t, "2024-01-02", final.Day.String())
	assert.Equal(t, int64(1100), final.LastRawValue)
}

func TestRun_RestartKeepsTally(t *testing.T) {
	_, counts := run(t, `
readings:
  - {day: "2024-01-01", raw: 100}
  - {day: "2024-01-01", raw: 300}
  - {day: "2024-01-01", raw: 350, restart: true}
  - {day: "2024-01-02", raw: 400}
  - {day: "2024-01-02", raw: 460, restart: true}
`)
	assert.Equal(t, []int64{0, 200, 250, 0, 60}, counts)
}

func TestLoad_Rejects(t *testing.T) {
	tests := map[string]string{
		"empty":       "",
		"no readings": "readings: []\n",
		"unknown key": "readings:\n  - {day: \"2024-01-01\", raw: 1, steps: 2}\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}

func TestRun_RejectsBadDay(t *testing.T) {
	s, err := Load(strings.NewReader("readings:\n  - {day: \"01/02/2024\", raw: 1}\n"))
	require.NoError(t, err)
	_, _, err = Run(context.Background(), s, nil)
	assert.Error(t, err)
}

func TestPrint(t *testing.T) {
	steps, _ := run(t, `
readings:
  - {day: "2024-01-01", raw: 0}
  - {day: "2024-01-01", raw: 12345, restart: true}
`)
	var buf bytes.Buffer
	require.NoError(t, Print(&buf, steps))
	out := buf.String()
	assert.Contains(t, out, "STEPS TODAY")
	assert.Contains(t, out, "12,345")
	assert.Contains(t, out, "(restart)")
}
