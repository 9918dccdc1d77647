package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/growbot/internal/storage/record"
)

// MigrateResult describes the files produced by one migration.
type MigrateResult struct {
	Input   string
	Output  string
	Backup  string
	Entries int
}

// Migrate converts the legacy text store at inputPath to the binary format.
//
// The legacy file is named after the scope id itself (e.g. "42.json"), so the
// output name is the content hash of the file stem, which is the name the
// live Store derives for that scope. Outputs are written beside the input:
// <stem>.json.bak holds the original bytes and <hash>.dat the binary scope.
// The input is removed only after both writes succeed. A failed step leaves
// the input and any files already written in place.
//
// Postcondition: Returns the result, or an error wrapping record.ErrNotFound,
// record.ErrParse, or record.ErrIO.
func Migrate(inputPath string, logger *zap.Logger) (MigrateResult, error) {
	if _, err := os.Stat(inputPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return MigrateResult{}, fmt.Errorf("%w: file %s", record.ErrNotFound, inputPath)
		}
		return MigrateResult{}, fmt.Errorf("%w: stat %s: %w", record.ErrIO, inputPath, err)
	}

	logger.Info("reading text store", zap.String("path", inputPath))
	original, err := os.ReadFile(inputPath)
	if err != nil {
		return MigrateResult{}, fmt.Errorf("%w: reading %s: %w", record.ErrIO, inputPath, err)
	}
	scope, err := record.TextCodec{}.Decode(original)
	if err != nil {
		return MigrateResult{}, fmt.Errorf("%w: %s: %w", record.ErrParse, inputPath, err)
	}
	logger.Info("loaded entries", zap.Int("count", len(scope)))

	encoded, err := record.BinaryCodec{}.Encode(scope)
	if err != nil {
		return MigrateResult{}, fmt.Errorf("encoding %s: %w", inputPath, err)
	}

	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		return MigrateResult{}, fmt.Errorf("%w: invalid file name %q", record.ErrParse, base)
	}
	hash := record.HashName(stem)
	dir := filepath.Dir(inputPath)
	res := MigrateResult{
		Input:   inputPath,
		Output:  filepath.Join(dir, hash+record.FormatBinary.Ext()),
		Backup:  filepath.Join(dir, stem+".json.bak"),
		Entries: len(scope),
	}

	logger.Info("creating backup", zap.String("path", res.Backup))
	if err := os.WriteFile(res.Backup, original, 0o644); err != nil {
		return res, fmt.Errorf("%w: writing backup %s: %w", record.ErrIO, res.Backup, err)
	}

	logger.Info("writing binary store", zap.String("path", res.Output))
	if err := writeFileAtomic(res.Output, encoded); err != nil {
		return res, err
	}

	if err := os.Remove(inputPath); err != nil {
		return res, fmt.Errorf("%w: removing %s: %w", record.ErrIO, inputPath, err)
	}

	logger.Info("migration complete",
		zap.String("backup", res.Backup),
		zap.String("output", res.Output),
		zap.String("stem", stem),
		zap.String("hash", hash),
	)
	return res, nil
}

// MigrateDir migrates every *.json file directly inside dir, in name order.
// It stops at the first failure and returns the results completed so far.
func MigrateDir(dir string, logger *zap.Logger) ([]MigrateResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %w", record.ErrIO, dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && filepath.Ext(e.Name()) == ".json" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	results := make([]MigrateResult, 0, len(names))
	for _, name := range names {
		res, err := Migrate(filepath.Join(dir, name), logger.With(zap.String("file", name)))
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}
