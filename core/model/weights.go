package model

import (
	"encoding/json"
	"os"

	"github.com/pharmalnet/dti/pkg/errors"
)

// ManifestVersion is written into every manifest and checked on load.
const ManifestVersion = "1"

// Manifest はモデル構成を表す構造体（config.json 用）
type Manifest struct {
	// ModelType はモデルの種類（MLPRegressor等）
	ModelType string `json:"model_type"`

	// Version はフォーマットのバージョン（互換性チェック用）
	Version string `json:"version"`

	// NFeatures は学習時の特徴量数
	NFeatures int `json:"n_features"`

	// Hyperparameters はモデルのハイパーパラメータ（所有者が型を決める）
	Hyperparameters json.RawMessage `json:"hyperparameters"`

	// Metadata は追加のメタデータ
	Metadata map[string]string `json:"metadata,omitempty"`

	// IsFitted はモデルが学習済みかどうか
	IsFitted bool `json:"is_fitted"`
}

// NewManifest marshals hyperparameters into a manifest for modelType.
func NewManifest(modelType string, nFeatures int, hyperparameters interface{}) (*Manifest, error) {
	raw, err := json.Marshal(hyperparameters)
	if err != nil {
		return nil, errors.NewModelError("NewManifest", "encode hyperparameters", err)
	}
	return &Manifest{
		ModelType:       modelType,
		Version:         ManifestVersion,
		NFeatures:       nFeatures,
		Hyperparameters: raw,
		Metadata:        map[string]string{},
		IsFitted:        true,
	}, nil
}

// ToJSON はManifestをJSON形式にシリアライズ
func (m *Manifest) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// FromJSON はJSON形式からManifestをデシリアライズ
func (m *Manifest) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, m); err != nil {
		return errors.NewModelError("Manifest.FromJSON", "decode", err)
	}
	return m.Validate()
}

// DecodeHyperparameters unmarshals the hyperparameters into v.
func (m *Manifest) DecodeHyperparameters(v interface{}) error {
	if err := json.Unmarshal(m.Hyperparameters, v); err != nil {
		return errors.NewModelError("Manifest.DecodeHyperparameters", "decode", err)
	}
	return nil
}

// Validate はManifestの妥当性を検証
func (m *Manifest) Validate() error {
	if m.ModelType == "" {
		return errors.NewValidationError("model_type", "is required", m.ModelType)
	}
	if m.Version != ManifestVersion {
		return errors.NewValidationError("version", "unsupported manifest version", m.Version)
	}
	if !m.IsFitted {
		return errors.NewValidationError("is_fitted", "manifest describes an unfitted model", m.IsFitted)
	}
	if len(m.Hyperparameters) == 0 {
		return errors.NewValidationError("hyperparameters", "is required", nil)
	}
	return nil
}

// WriteFile writes the manifest as indented JSON.
func (m *Manifest) WriteFile(path string) error {
	data, err := m.ToJSON()
	if err != nil {
		return errors.NewModelError("Manifest.WriteFile", "encode", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.NewModelError("Manifest.WriteFile", "write", err)
	}
	return nil
}

// ReadManifest reads and validates a manifest file.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewModelError("ReadManifest", "read", err)
	}
	m := &Manifest{}
	if err := m.FromJSON(data); err != nil {
		return nil, err
	}
	return m, nil
}
