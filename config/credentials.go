package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// CredentialStore 本地凭证文件，内容为 {"vendor": "api-key"} 形式的 JSON
type CredentialStore struct {
	path string
	mu   sync.Mutex
}

// NewCredentialStore 创建凭证存储
func NewCredentialStore(path string) *CredentialStore {
	return &CredentialStore{path: path}
}

// Path 返回文件路径
func (s *CredentialStore) Path() string { return s.path }

// Load 读取全部凭证，文件不存在时返回空 map
func (s *CredentialStore) Load() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *CredentialStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	creds := map[string]string{}
	if len(data) == 0 {
		return creds, nil
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", s.path, err)
	}
	return creds, nil
}

// Set 保存单个厂商凭证
func (s *CredentialStore) Set(vendor, key string) error {
	if (&VendorsConfig{}).Vendor(vendor) == nil {
		return fmt.Errorf("unknown vendor %q", vendor)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.load()
	if err != nil {
		return err
	}
	creds[vendor] = key
	return s.save(creds)
}

// Delete 删除单个厂商凭证
func (s *CredentialStore) Delete(vendor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.load()
	if err != nil {
		return err
	}
	delete(creds, vendor)
	return s.save(creds)
}

// save 先写临时文件再 rename
func (s *CredentialStore) save(creds map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// ApplyTo 用文件中的凭证填补空的 api_key，显式配置优先
func (s *CredentialStore) ApplyTo(v *VendorsConfig) error {
	creds, err := s.Load()
	if err != nil {
		return err
	}
	for name, key := range creds {
		vc := v.Vendor(name)
		if vc == nil || vc.APIKey != "" {
			continue
		}
		vc.APIKey = key
	}
	return nil
}

// Masked 返回脱敏后的凭证列表，按厂商名排序
func (s *CredentialStore) Masked() ([][2]string, error) {
	creds, err := s.Load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(creds))
	for n := range creds {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make([][2]string, 0, len(names))
	for _, n := range names {
		out = append(out, [2]string{n, MaskSecret(creds[n])})
	}
	return out, nil
}

// MaskSecret 只保留末尾 4 位
func MaskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
