package audio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAGCBoostsQuietSignal(t *testing.T) {
	agc := NewAGC(1500, 0.5, 3, 0.2)
	quiet := make([]int16, 480)
	for i := range quiet {
		quiet[i] = 50
	}

	var out []int16
	for i := 0; i < 20; i++ {
		out = agc.Apply(quiet)
	}

	require.Greater(t, rms(out), rms(quiet))
}

func TestAGCClampsGain(t *testing.T) {
	agc := NewAGC(1500, 0.5, 3, 0.2)
	silence := make([]int16, 480)

	for i := 0; i < 50; i++ {
		agc.Apply(silence)
	}

	require.LessOrEqual(t, agc.smoothedGain, 3.0)
}

func TestAGCPassesThroughNearUnityGain(t *testing.T) {
	agc := NewAGC(1500, 0.5, 3, 0.2)
	loud := make([]int16, 480)
	for i := range loud {
		loud[i] = 1500
	}

	for i := 0; i < 30; i++ {
		agc.Apply(loud)
	}

	require.InDelta(t, 1, agc.smoothedGain, 0.1)
}
