package encoder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/streamproxy/internal/wire"
)

func TestIntraRefreshCountFloorsAtTwenty(t *testing.T) {
	require.Equal(t, uint32(20), intraRefreshCount(5))
	require.Equal(t, uint32(20), intraRefreshCount(10))
	require.Equal(t, uint32(60), intraRefreshCount(30))
	require.Equal(t, uint32(120), intraRefreshCount(60))
}

func TestEncoderElementCandidatesPerCodec(t *testing.T) {
	require.Contains(t, encoderElementCandidates(wire.VideoCodecH264), "x264enc")
	require.Contains(t, encoderElementCandidates(wire.VideoCodecH265), "x265enc")
	require.Contains(t, encoderElementCandidates(wire.VideoCodecAV1), "av1enc")
	require.Nil(t, encoderElementCandidates(wire.VideoCodec(99)))
}

func TestMapBeforeSubmitErrors(t *testing.T) {
	_, err := waitForResult(nil, &Frame{})
	require.ErrorIs(t, err, errNotSubmitted)
}
