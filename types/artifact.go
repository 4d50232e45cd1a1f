package types

import (
	"errors"
	"fmt"
	"strings"
)

// ArtifactKind 标识 Artifact 的具体变体
type ArtifactKind string

const (
	KindText    ArtifactKind = "text"
	KindScript  ArtifactKind = "script"
	KindImage   ArtifactKind = "image"
	KindModel   ArtifactKind = "model"
	KindAudio   ArtifactKind = "audio"
	KindFailure ArtifactKind = "failure"
)

// Artifact is the result of one generation item. The set of variants is closed:
// Text, Script, ImageRef, ModelRef, AudioRef and Failure.
type Artifact interface {
	Kind() ArtifactKind
	sealed()
}

// Text is generated prose.
type Text struct {
	Body string `json:"body"`
}

// Script is generated source code for a target language.
// Isolated is false when the sanitizer could not find a code region and returned the input unchanged.
type Script struct {
	Source    string `json:"source"`
	Language  string `json:"language"`
	Extension string `json:"extension"`
	Isolated  bool   `json:"isolated"`
}

// ImageRef points to a generated image, either remotely or inline.
type ImageRef struct {
	URL    string `json:"url,omitempty"`
	Data   []byte `json:"-"`
	Format string `json:"format,omitempty"`
}

// ModelFile is one representation of a 3D model.
type ModelFile struct {
	Format string `json:"format"`
	URL    string `json:"url,omitempty"`
	Data   []byte `json:"-"`
}

// ModelRef holds every representation returned by an image-to-3D conversion.
type ModelRef struct {
	Files    []ModelFile `json:"files"`
	Provider string      `json:"provider,omitempty"`
}

// AudioRef points to generated audio.
type AudioRef struct {
	URL    string `json:"url,omitempty"`
	Data   []byte `json:"-"`
	Format string `json:"format,omitempty"`
}

// Failure records why an item could not be produced.
type Failure struct {
	Cause      string    `json:"cause"`
	Code       ErrorCode `json:"code,omitempty"`
	HTTPStatus int       `json:"http_status,omitempty"`
}

func (Text) Kind() ArtifactKind     { return KindText }
func (Script) Kind() ArtifactKind   { return KindScript }
func (ImageRef) Kind() ArtifactKind { return KindImage }
func (ModelRef) Kind() ArtifactKind { return KindModel }
func (AudioRef) Kind() ArtifactKind { return KindAudio }
func (Failure) Kind() ArtifactKind  { return KindFailure }

func (Text) sealed()     {}
func (Script) sealed()   {}
func (ImageRef) sealed() {}
func (ModelRef) sealed() {}
func (AudioRef) sealed() {}
func (Failure) sealed()  {}

// Error lets a Failure be used where an error is expected.
func (f Failure) Error() string { return f.Cause }

// Formats lists the representations present in the model, in vendor order.
func (m ModelRef) Formats() []string {
	out := make([]string, 0, len(m.Files))
	for _, f := range m.Files {
		out = append(out, f.Format)
	}
	return out
}

// NewFailure converts an error into a Failure artifact, keeping code and status when available.
func NewFailure(err error) Failure {
	if err == nil {
		return Failure{Cause: "unknown failure"}
	}
	f := Failure{Cause: err.Error()}
	var te *Error
	if errors.As(err, &te) {
		f.Code = te.Code
		f.HTTPStatus = te.HTTPStatus
	}
	return f
}

// IsFailure reports whether a is a Failure.
func IsFailure(a Artifact) bool {
	_, ok := a.(Failure)
	return ok
}

// ArtifactSummary is the JSON form of an artifact used in run reports.
type ArtifactSummary struct {
	Kind    ArtifactKind `json:"kind"`
	Preview string       `json:"preview,omitempty"`
	URL     string       `json:"url,omitempty"`
	Formats []string     `json:"formats,omitempty"`
	Bytes   int          `json:"bytes,omitempty"`
	Error   string       `json:"error,omitempty"`
}

const previewLimit = 160

// Describe returns a compact summary of a.
func Describe(a Artifact) ArtifactSummary {
	switch v := a.(type) {
	case Text:
		return ArtifactSummary{Kind: KindText, Preview: preview(v.Body), Bytes: len(v.Body)}
	case Script:
		return ArtifactSummary{Kind: KindScript, Preview: preview(v.Source), Bytes: len(v.Source), Formats: []string{v.Extension}}
	case ImageRef:
		return ArtifactSummary{Kind: KindImage, URL: v.URL, Bytes: len(v.Data), Formats: nonEmpty(v.Format)}
	case ModelRef:
		return ArtifactSummary{Kind: KindModel, Formats: v.Formats()}
	case AudioRef:
		return ArtifactSummary{Kind: KindAudio, URL: v.URL, Bytes: len(v.Data), Formats: nonEmpty(v.Format)}
	case Failure:
		return ArtifactSummary{Kind: KindFailure, Error: v.Cause}
	default:
		return ArtifactSummary{Kind: ArtifactKind(fmt.Sprintf("%T", a))}
	}
}

func preview(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= previewLimit {
		return s
	}
	return string(r[:previewLimit]) + "..."
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}
