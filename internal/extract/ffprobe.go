package extract

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

// audioProps is the subset of ffprobe's output extract needs: the audio
// properties dhowden/tag does not provide.
type audioProps struct {
	durationMs  int
	bitrateKbps int
	sampleRate  int
	bitDepth    int
	codec       string
}

// intOrString unmarshals ffprobe fields that are sometimes a JSON number
// and sometimes the string "N/A".
type intOrString struct{ Value int }

func (i *intOrString) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		i.Value = n
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" || s == "N/A" {
		return nil
	}
	if v, err := strconv.Atoi(s); err == nil {
		i.Value = v
	}
	return nil
}

type ffprobeStream struct {
	CodecName        string      `json:"codec_name"`
	CodecType        string      `json:"codec_type"`
	SampleRate       string      `json:"sample_rate"`
	BitsPerSample    intOrString `json:"bits_per_sample"`
	BitsPerRawSample intOrString `json:"bits_per_raw_sample"`
	BitRate          string      `json:"bit_rate"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
	BitRate  string `json:"bit_rate"`
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  *ffprobeFormat  `json:"format"`
}

// ffprobeAvailable caches the exec.LookPath result; ffprobe absence is
// common (it's an optional fallback) and shouldn't be re-probed per file.
var ffprobeAvailable = -1 // -1 unknown, 0 no, 1 yes

func probe(path string) (*audioProps, error) {
	if ffprobeAvailable == 0 {
		return nil, fmt.Errorf("ffprobe not available")
	}
	if ffprobeAvailable == -1 {
		if _, err := exec.LookPath("ffprobe"); err != nil {
			ffprobeAvailable = 0
			return nil, fmt.Errorf("ffprobe not available")
		}
		ffprobeAvailable = 1
	}

	cmd := exec.Command("ffprobe", "-v", "quiet", "-print_format", "json",
		"-show_format", "-show_streams", "-select_streams", "a:0", path)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}

	var o ffprobeOutput
	if err := json.Unmarshal(out, &o); err != nil {
		return nil, fmt.Errorf("ffprobe parse: %w", err)
	}

	props := &audioProps{}
	if o.Format != nil {
		var durationSec float64
		fmt.Sscanf(o.Format.Duration, "%f", &durationSec)
		props.durationMs = int(durationSec * 1000)

		var bitrate int
		fmt.Sscanf(o.Format.BitRate, "%d", &bitrate)
		props.bitrateKbps = bitrate / 1000
	}
	if len(o.Streams) > 0 {
		s := o.Streams[0]
		props.codec = s.CodecName
		fmt.Sscanf(s.SampleRate, "%d", &props.sampleRate)
		if s.BitsPerSample.Value > 0 {
			props.bitDepth = s.BitsPerSample.Value
		} else if s.BitsPerRawSample.Value > 0 {
			props.bitDepth = s.BitsPerRawSample.Value
		}
		if props.bitrateKbps == 0 {
			var sb int
			fmt.Sscanf(s.BitRate, "%d", &sb)
			props.bitrateKbps = sb / 1000
		}
	}
	return props, nil
}
