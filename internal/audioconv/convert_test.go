package audioconv

import "testing"

func TestInputArgsRawFormats(t *testing.T) {
	tests := []struct {
		ext   string
		wantF string
	}{
		{".ulaw", "mulaw"},
		{".alaw", "alaw"},
		{".sln", "s16le"},
		{".gsm", "gsm"},
	}
	for _, tt := range tests {
		args := inputArgs(tt.ext)
		if len(args) == 0 {
			t.Errorf("inputArgs(%q) empty, want -f %s", tt.ext, tt.wantF)
			continue
		}
		if args[0] != "-f" || args[1] != tt.wantF {
			t.Errorf("inputArgs(%q) = %v, want -f %s", tt.ext, args, tt.wantF)
		}
	}
}

func TestInputArgsContainerFormats(t *testing.T) {
	for _, ext := range []string{".wav", ".mp3", ".au", ".g722", ".flac"} {
		if args := inputArgs(ext); args != nil {
			t.Errorf("inputArgs(%q) = %v, want nil for self-describing format", ext, args)
		}
	}
}
