package ml

import (
	"os"
	"path/filepath"

	"go.uber.org/multierr"
)

type artifactFile struct {
	path    string
	payload []byte
	staged  string
}

// SaveArtifacts writes the model and its encoders as a pair. Both payloads are staged
// next to their targets and renamed into place only once both are on disk, so a failure
// leaves any previous pair untouched.
func SaveArtifacts(modelPath, encodersPath string, artifact *ModelArtifact, table EncoderTable) error {
	model, err := marshalModel(modelPath, artifact)
	if err != nil {
		return err
	}
	encoders, err := marshalEncoders(encodersPath, table)
	if err != nil {
		return err
	}
	return writeFiles(
		&artifactFile{path: modelPath, payload: model},
		&artifactFile{path: encodersPath, payload: encoders},
	)
}

func writeFiles(files ...*artifactFile) (err error) {
	defer func() {
		if err == nil {
			return
		}
		for _, f := range files {
			if f.staged != "" {
				_ = os.Remove(f.staged)
			}
		}
	}()

	for _, f := range files {
		if err := f.stage(); err != nil {
			return artifactError(f.path, err)
		}
	}
	for _, f := range files {
		if err := os.Rename(f.staged, f.path); err != nil {
			return artifactError(f.path, err)
		}
		f.staged = ""
	}
	return nil
}

func (f *artifactFile) stage() (err error) {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+"-*")
	if err != nil {
		return err
	}
	f.staged = tmp.Name()

	_, err = tmp.Write(f.payload)
	err = multierr.Append(err, tmp.Chmod(0o600))
	return multierr.Append(err, tmp.Close())
}
