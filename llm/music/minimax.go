package music

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"net/http"

	"github.com/BaSui01/assetflow/llm/providers"
	"github.com/BaSui01/assetflow/types"
)

// MiniMaxProvider MiniMax 音乐生成，同步返回音频
type MiniMaxProvider struct {
	cfg Config
}

// NewMiniMaxProvider 创建 MiniMax 厂商
func NewMiniMaxProvider(cfg Config) *MiniMaxProvider {
	cfg.defaults("https://api.minimax.io")
	return &MiniMaxProvider{cfg: cfg}
}

func (p *MiniMaxProvider) Name() string { return "minimax" }

type miniMaxAudioSetting struct {
	SampleRate int    `json:"sample_rate"`
	Bitrate    int    `json:"bitrate"`
	Format     string `json:"format"`
}

type miniMaxMusicRequest struct {
	Model        string              `json:"model"`
	Prompt       string              `json:"prompt"`
	Lyrics       string              `json:"lyrics,omitempty"`
	AudioSetting miniMaxAudioSetting `json:"audio_setting"`
}

type miniMaxMusicResponse struct {
	BaseResp struct {
		StatusCode int    `json:"status_code"`
		StatusMsg  string `json:"status_msg"`
	} `json:"base_resp"`
	Data struct {
		Audio  string `json:"audio"`
		Status int    `json:"status"`
	} `json:"data"`
}

// instrumentalLyrics 无人声时的歌词占位
const instrumentalLyrics = "[Instrumental]"

// Generate POST /v1/music_generation
func (p *MiniMaxProvider) Generate(ctx context.Context, req *Request) (types.AudioRef, error) {
	body := miniMaxMusicRequest{
		Model:        req.Model,
		Prompt:       req.Prompt,
		AudioSetting: miniMaxAudioSetting{SampleRate: 44100, Bitrate: 128000, Format: "mp3"},
	}
	if req.Instrumental {
		body.Lyrics = instrumentalLyrics
	}

	httpReq, err := providers.NewJSONRequest(ctx, http.MethodPost, providers.JoinURL(p.cfg.BaseURL, "/v1/music_generation"), body)
	if err != nil {
		return types.AudioRef{}, err
	}
	providers.SetBearer(httpReq, p.cfg.APIKey)

	var resp miniMaxMusicResponse
	if err := providers.DoJSON(p.cfg.HTTPClient, httpReq, p.Name(), &resp); err != nil {
		return types.AudioRef{}, err
	}
	if resp.BaseResp.StatusCode != 0 {
		return types.AudioRef{}, types.Errorf(types.ErrUpstreamError, "minimax status %d: %s",
			resp.BaseResp.StatusCode, resp.BaseResp.StatusMsg).WithProvider(p.Name())
	}
	if resp.Data.Audio == "" {
		return types.AudioRef{}, providers.EmptyResult(p.Name(), "audio")
	}

	data, err := decodeAudio(resp.Data.Audio)
	if err != nil {
		return types.AudioRef{}, providers.MalformedResponse(p.Name(), err)
	}
	return types.AudioRef{Data: data, Format: "mp3"}, nil
}

// decodeAudio 官方返回 hex，部分网关返回 base64
func decodeAudio(s string) ([]byte, error) {
	if data, err := hex.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.StdEncoding.DecodeString(s)
}
