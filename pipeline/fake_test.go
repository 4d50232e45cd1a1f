package pipeline

import (
	"context"
	"strings"
	"sync"

	"github.com/BaSui01/assetflow/llm"
	"github.com/BaSui01/assetflow/types"
)

// fakeGenerator 记录调用的内存厂商
type fakeGenerator struct {
	mu sync.Mutex

	textPrompts  []string
	textRoles    []string
	imagePrompts []string
	convertCalls []types.ImageRef
	audioCalls   int

	checkErr  map[llm.Modality]error
	text      func(prompt, role string) (string, error)
	image     func(call int, prompt string) (types.ImageRef, error)
	onImage   func(call int)
	convertFn func(types.ImageRef) (types.ModelRef, error)
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{checkErr: map[llm.Modality]error{}}
}

func (f *fakeGenerator) CheckModel(mod llm.Modality, model string) error {
	return f.checkErr[mod]
}

func (f *fakeGenerator) GenerateText(ctx context.Context, prompt, role, model string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", types.NewError(types.ErrCancelled, "cancelled").WithCause(err)
	}
	f.mu.Lock()
	f.textPrompts = append(f.textPrompts, prompt)
	f.textRoles = append(f.textRoles, role)
	f.mu.Unlock()
	if f.text != nil {
		return f.text(prompt, role)
	}
	if strings.Contains(role, "programmer") {
		return "Here you go:\n```\nfunc main() {}\n```\nEnjoy.", nil
	}
	return "text for: " + firstLine(prompt), nil
}

func (f *fakeGenerator) GenerateImage(ctx context.Context, prompt, size, model string) (types.ImageRef, error) {
	if err := ctx.Err(); err != nil {
		return types.ImageRef{}, types.NewError(types.ErrCancelled, "cancelled").WithCause(err)
	}
	f.mu.Lock()
	f.imagePrompts = append(f.imagePrompts, prompt)
	call := len(f.imagePrompts)
	f.mu.Unlock()
	if f.onImage != nil {
		f.onImage(call)
	}
	if f.image != nil {
		return f.image(call, prompt)
	}
	return types.ImageRef{URL: "https://cdn.example/" + firstLine(prompt) + ".png", Format: "png"}, nil
}

func (f *fakeGenerator) ConvertTo3D(ctx context.Context, image types.ImageRef, model string) (types.ModelRef, error) {
	f.mu.Lock()
	f.convertCalls = append(f.convertCalls, image)
	f.mu.Unlock()
	if f.convertFn != nil {
		return f.convertFn(image)
	}
	return types.ModelRef{Files: []types.ModelFile{{Format: "glb", URL: image.URL + ".glb"}}}, nil
}

func (f *fakeGenerator) GenerateAudio(ctx context.Context, prompt, model string) (types.AudioRef, error) {
	f.mu.Lock()
	f.audioCalls++
	f.mu.Unlock()
	return types.AudioRef{Data: []byte("ID3"), Format: "mp3"}, nil
}

func (f *fakeGenerator) imageCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.imagePrompts)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func defaultTestModels() Models {
	return Models{Chat: "gpt-4o", Image: "dall-e-3", Code: "gpt-4o", ThreeD: "meshy-4", Music: "music-01"}
}

func mustRequest(in RequestInput) Request {
	req, err := NewRequest(in, defaultTestModels())
	if err != nil {
		panic(err)
	}
	return req
}
