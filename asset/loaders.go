package asset

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// JSONLoader decodes the asset file as JSON into an A.
func JSONLoader[A any]() Loader[A] {
	return func(_ context.Context, lc *LoadContext) (A, error) {
		var value A
		data, err := lc.Read()
		if err != nil {
			return value, err
		}
		if err := json.Unmarshal(data, &value); err != nil {
			return value, eris.Wrapf(err, "decode %s", lc.Path)
		}
		return value, nil
	}
}

// BytesLoader keeps the raw file content.
func BytesLoader(_ context.Context, lc *LoadContext) ([]byte, error) {
	return lc.Read()
}
