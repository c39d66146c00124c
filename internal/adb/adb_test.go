package adb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDeviceList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		out  string
		want []deviceEntry
	}{
		{
			name: "no devices",
			out:  "List of devices attached\n\n",
			want: nil,
		},
		{
			name: "single ready device",
			out:  "List of devices attached\nemulator-5554\tdevice\n\n",
			want: []deviceEntry{{serial: "emulator-5554", state: "device"}},
		},
		{
			name: "unauthorized device",
			out:  "List of devices attached\nR58M123ABC\tunauthorized\n\n",
			want: []deviceEntry{{serial: "R58M123ABC", state: "unauthorized"}},
		},
		{
			name: "multiple devices",
			out:  "List of devices attached\nemulator-5554\tdevice\nR58M123ABC\tdevice\n\n",
			want: []deviceEntry{
				{serial: "emulator-5554", state: "device"},
				{serial: "R58M123ABC", state: "device"},
			},
		},
		{
			name: "windows line endings",
			out:  "List of devices attached\r\nemulator-5554\tdevice\r\n\r\n",
			want: []deviceEntry{{serial: "emulator-5554", state: "device"}},
		},
		{
			name: "daemon banner only",
			out:  "List of devices attached\n",
			want: nil,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, parseDeviceList(tt.out))
		})
	}
}
