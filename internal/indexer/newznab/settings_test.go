package newznab

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fetcharr/fetcharr/internal/indexer"
)

func TestVipWarnings(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		expiration string
		want       string
	}{
		{"not configured", "", ""},
		{"well in the future", "2025-01-01", ""},
		{"inside warning window", "2024-06-20", "VIP access expires on 2024-06-20"},
		{"already lapsed", "2024-06-01", "VIP access expired on 2024-06-01"},
		{"unparseable date", "soon", `invalid VIP expiration date "soon"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Settings{BaseURL: "https://indexer.example.com", VipExpiration: tt.expiration}
			warnings := s.VipWarnings(now)
			if tt.want == "" {
				assert.Empty(t, warnings)
				return
			}
			require.Len(t, warnings, 1)
			assert.Equal(t, tt.want, warnings[0])
		})
	}
}

func TestNewProvider_VipExpirationWiresWarnings(t *testing.T) {
	def := indexer.Definition{ID: 1, Name: "viptest", Protocol: indexer.ProtocolTorrent}

	withVip := NewProvider(def, Settings{
		BaseURL:       "https://indexer.example.com",
		VipExpiration: "2024-06-01",
	}, &indexer.Capabilities{})
	require.NotNil(t, withVip.Warnings)
	warnings := withVip.Warnings(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC))
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "expired")

	withoutVip := NewProvider(def, Settings{
		BaseURL: "https://indexer.example.com",
	}, &indexer.Capabilities{})
	assert.Nil(t, withoutVip.Warnings)
}
