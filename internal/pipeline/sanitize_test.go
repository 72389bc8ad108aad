package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"named mention", "hi <@U123|alice> there", "hi [alice] there"},
		{"bare mention", "hi <@U123> there", "hi [user] there"},
		{"subteam ping", "ping <!subteam^S123|@devs>", "ping <[group]S123|@devs>"},
		{"channel ping", "hey <!channel> wake up", "hey <redacted for mass ping risk> wake up"},
		{"here ping", "<!here>", "<redacted for mass ping risk>"},
		{"everyone ping", "<!everyone>", "<redacted for mass ping risk>"},
		{"clean text", "nothing to see", "nothing to see"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}
