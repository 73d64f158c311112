package blob

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"

	"github.com/newthinker/papertrader/internal/storage"
)

var _ Storage = (*S3Storage)(nil)

func TestS3Storage_Key(t *testing.T) {
	tests := []struct {
		prefix string
		path   string
		want   string
	}{
		{"", "sessions/a.json", "sessions/a.json"},
		{"papertrader", "sessions/a.json", "papertrader/sessions/a.json"},
		{"papertrader/", "sessions/a.json", "papertrader/sessions/a.json"},
	}

	for _, tt := range tests {
		s := &S3Storage{prefix: strings.TrimSuffix(tt.prefix, "/")}
		assert.Equal(t, tt.want, s.key(tt.path))
		assert.Equal(t, tt.path, s.relative(s.key(tt.path)))
	}
}

func TestNewS3_RequiresBucket(t *testing.T) {
	_, err := NewS3(S3Config{Region: "us-east-1"})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	s, err := NewS3(S3Config{Bucket: "sims", Region: "us-east-1", Endpoint: "http://localhost:9000", Prefix: "pt/"})
	assert.NoError(t, err)
	assert.Equal(t, "pt", s.prefix)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(fmt.Errorf("get: %w", &types.NoSuchKey{})))
	assert.True(t, isNotFound(&types.NotFound{}))
	assert.True(t, isNotFound(errors.New("operation error S3: HeadObject, https response error StatusCode: 404")))
	assert.False(t, isNotFound(errors.New("access denied")))
}
