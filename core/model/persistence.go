package model

import (
	"bufio"
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/pharmalnet/dti/pkg/errors"
)

// SaveModel はモデルをgob形式でファイルに保存する
//
// 書き込みは同じディレクトリの一時ファイルに行い、最後にリネームする。
//
//	err := model.SaveModel(reg, "model.gob")
func SaveModel(m interface{}, filename string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(filename), ".model-*.gob")
	if err != nil {
		return errors.NewModelError("SaveModel", "create file", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if err = SaveModelToWriter(m, w); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = w.Flush(); err != nil {
		_ = tmp.Close()
		return errors.NewModelError("SaveModel", "flush", err)
	}
	if err = tmp.Close(); err != nil {
		return errors.NewModelError("SaveModel", "close", err)
	}
	if err = os.Rename(tmp.Name(), filename); err != nil {
		return errors.NewModelError("SaveModel", "rename", err)
	}
	return nil
}

// LoadModel はファイルからモデルを読み込む
//
//	var reg neural_network.MLPRegressor
//	err := model.LoadModel(&reg, "model.gob")
func LoadModel(m interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.NewModelError("LoadModel", "open file", err)
	}
	defer file.Close()

	return LoadModelFromReader(m, bufio.NewReader(file))
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(m interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(m); err != nil {
		return errors.NewModelError("SaveModel", "encode model", err)
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(m interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(m); err != nil {
		return errors.NewModelError("LoadModel", "decode model", err)
	}
	return nil
}
