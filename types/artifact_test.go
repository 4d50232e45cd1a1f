package types

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewFailure_KeepsStatus(t *testing.T) {
	err := NewError(ErrUpstreamError, "flux returned status 500: boom").WithHTTPStatus(500)
	f := NewFailure(err)

	assert.Equal(t, ErrUpstreamError, f.Code)
	assert.Equal(t, 500, f.HTTPStatus)
	assert.Contains(t, f.Cause, "500")
	assert.True(t, IsFailure(f))
}

func TestNewFailure_PlainAndNil(t *testing.T) {
	assert.Equal(t, "boom", NewFailure(errors.New("boom")).Cause)
	assert.NotEmpty(t, NewFailure(nil).Cause)
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		in   Artifact
		kind ArtifactKind
	}{
		{"text", Text{Body: "hello"}, KindText},
		{"script", Script{Source: "print(1)", Extension: "py"}, KindScript},
		{"image", ImageRef{URL: "https://x/a.png", Format: "png"}, KindImage},
		{"model", ModelRef{Files: []ModelFile{{Format: "glb"}, {Format: "obj"}}}, KindModel},
		{"audio", AudioRef{Data: []byte{1, 2}, Format: "mp3"}, KindAudio},
		{"failure", Failure{Cause: "nope"}, KindFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Describe(tt.in)
			assert.Equal(t, tt.kind, s.Kind)
			assert.Equal(t, tt.kind, tt.in.Kind())
		})
	}

	assert.Equal(t, []string{"glb", "obj"}, Describe(ModelRef{Files: []ModelFile{{Format: "glb"}, {Format: "obj"}}}).Formats)
}

func TestDescribe_TruncatesPreview(t *testing.T) {
	s := Describe(Text{Body: strings.Repeat("a", 500)})
	assert.True(t, strings.HasSuffix(s.Preview, "..."))
	assert.Equal(t, 500, s.Bytes)
}
