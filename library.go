package rgb332

import (
	"bytes"
	"context"
	"crypto/sha1"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bodgit/rgb332/frame"
	rgbimage "github.com/bodgit/rgb332/image"
	"github.com/bodgit/rgb332/metadata"
	_ "github.com/mattn/go-sqlite3" // register sqlite3 driver
)

// ErrNotFound is returned when an asset is not in the library.
var ErrNotFound = errors.New("rgb332: asset not found")

// Library stores converted sequences in a SQLite database.
type Library struct {
	db *sql.DB
}

// Asset is a summary of a stored sequence.
type Asset struct {
	Name   string
	Source string
	Kind   metadata.Kind
	Frames int
	Width  int
	Height int
	Rotate int
}

// NewLibrary opens the database in file, creating it and its tables if
// necessary.
func NewLibrary(file string) (*Library, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_foreign_keys=on", file))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS source (id INTEGER PRIMARY KEY NOT NULL, sha1 TEXT NOT NULL UNIQUE, name TEXT NOT NULL, kind TEXT NOT NULL)"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS asset (id INTEGER PRIMARY KEY NOT NULL, name TEXT NOT NULL UNIQUE, source_id INTEGER NOT NULL, width INTEGER NOT NULL, height INTEGER NOT NULL, rotate INTEGER NOT NULL, FOREIGN KEY(source_id) REFERENCES source(id))"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS frame (asset_id INTEGER NOT NULL, idx INTEGER NOT NULL, data BLOB NOT NULL, PRIMARY KEY(asset_id, idx), FOREIGN KEY(asset_id) REFERENCES asset(id) ON DELETE CASCADE)"); err != nil {
		db.Close()
		return nil, err
	}

	return &Library{
		db: db,
	}, nil
}

// Close closes the database.
func (l *Library) Close() error {
	return l.db.Close()
}

func hashFile(file string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("%X", h.Sum(nil)), nil
}

func addSource(tx *sql.Tx, sha, name string, kind metadata.Kind) (int64, error) {
	var id int64
	switch err := tx.QueryRow("SELECT id FROM source WHERE sha1 = ?", sha).Scan(&id); err {
	case sql.ErrNoRows:
		result, err := tx.Exec("INSERT INTO source (sha1, name, kind) VALUES (?, ?, ?)", sha, name, string(kind))
		if err != nil {
			return 0, err
		}
		return result.LastInsertId()
	case nil:
		return id, nil
	default:
		return 0, err
	}
}

func pruneSources(tx *sql.Tx) error {
	_, err := tx.Exec("DELETE FROM source WHERE id NOT IN (SELECT source_id FROM asset)")
	return err
}

// Store saves seq under name, replacing any asset already using that name.
// origin is the file the frames were converted from; sources are shared
// between assets when their contents match.
func (l *Library) Store(name, origin string, i *metadata.Info, seq *rgbimage.Sequence, rotate int) (err error) {
	if seq.Len() == 0 {
		return ErrNoFrames
	}

	sha, err := hashFile(origin)
	if err != nil {
		return err
	}

	tx, err := l.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	source, err := addSource(tx, sha, i.Name, i.Kind)
	if err != nil {
		return err
	}

	if _, err = tx.Exec("DELETE FROM frame WHERE asset_id IN (SELECT id FROM asset WHERE name = ?)", name); err != nil {
		return err
	}
	if _, err = tx.Exec("DELETE FROM asset WHERE name = ?", name); err != nil {
		return err
	}

	result, err := tx.Exec("INSERT INTO asset (name, source_id, width, height, rotate) VALUES (?, ?, ?, ?, ?)", name, source, seq.Width, seq.Height, rotate)
	if err != nil {
		return err
	}
	asset, err := result.LastInsertId()
	if err != nil {
		return err
	}

	for idx, f := range seq.Frames {
		if _, err = tx.Exec("INSERT INTO frame (asset_id, idx, data) VALUES (?, ?, ?)", asset, idx, f.Bytes()); err != nil {
			return err
		}
	}

	// The asset may have been the last user of a different source
	if err = pruneSources(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// Load returns the sequence stored under name.
func (l *Library) Load(name string) (*rgbimage.Sequence, *metadata.Info, error) {
	var (
		id   int64
		kind string
		i    metadata.Info
	)
	switch err := l.db.QueryRow("SELECT a.id, a.width, a.height, s.name, s.kind FROM asset AS a JOIN source AS s ON a.source_id = s.id WHERE a.name = ?", name).Scan(&id, &i.Width, &i.Height, &i.Name, &kind); err {
	case sql.ErrNoRows:
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	case nil:
	default:
		return nil, nil, err
	}
	i.Kind = metadata.Kind(kind)

	rows, err := l.db.Query("SELECT data FROM frame WHERE asset_id = ? ORDER BY idx", id)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	seq := new(rgbimage.Sequence)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, nil, err
		}
		m, err := rgbimage.Decode(bytes.NewReader(data), i.Width, i.Height)
		if err != nil {
			return nil, nil, fmt.Errorf("rgb332: asset %s: %w", name, err)
		}
		if err := seq.Append(m); err != nil {
			return nil, nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	i.Frames = seq.Len()

	return seq, &i, nil
}

// List returns every stored asset ordered by name.
func (l *Library) List() ([]Asset, error) {
	rows, err := l.db.Query("SELECT a.name, s.name, s.kind, a.width, a.height, a.rotate, (SELECT COUNT(*) FROM frame AS f WHERE f.asset_id = a.id) FROM asset AS a JOIN source AS s ON a.source_id = s.id ORDER BY a.name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		var (
			a    Asset
			kind string
		)
		if err := rows.Scan(&a.Name, &a.Source, &kind, &a.Width, &a.Height, &a.Rotate, &a.Frames); err != nil {
			return nil, err
		}
		a.Kind = metadata.Kind(kind)
		assets = append(assets, a)
	}

	return assets, rows.Err()
}

// Remove deletes the asset stored under name. Sources no longer used by any
// asset are removed too.
func (l *Library) Remove(name string) (err error) {
	tx, err := l.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec("DELETE FROM frame WHERE asset_id IN (SELECT id FROM asset WHERE name = ?)", name); err != nil {
		return err
	}

	result, err := tx.Exec("DELETE FROM asset WHERE name = ?", name)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if err = pruneSources(tx); err != nil {
		return err
	}

	return tx.Commit()
}

var errNoLibrary = errors.New("rgb332: no library configured")

// Import converts the file at path and stores the result under name.
func (c *Converter) Import(ctx context.Context, path, name string) (*metadata.Info, error) {
	if c.lib == nil {
		return nil, errNoLibrary
	}

	seq, i, err := c.Convert(ctx, path)
	if err != nil {
		return nil, err
	}

	if err := c.lib.Store(name, path, i, seq, frame.Turns(c.options.Rotate)); err != nil {
		return nil, err
	}
	c.logger.Printf("Stored %d frames of %dx%d as \"%s\"\n", i.Frames, i.Width, i.Height, name)

	return i, nil
}

// ExportHeader writes the asset stored under name as a C header into dir.
func (c *Converter) ExportHeader(name, dir string) error {
	if c.lib == nil {
		return errNoLibrary
	}

	seq, i, err := c.lib.Load(name)
	if err != nil {
		return err
	}

	return c.writeHeader(dir, name, seq, i)
}

// ExportFrames writes the asset stored under name as raw frames into dir,
// in the same layout as WriteFrames.
func (c *Converter) ExportFrames(name, dir string) (*metadata.Info, error) {
	if c.lib == nil {
		return nil, errNoLibrary
	}

	seq, i, err := c.lib.Load(name)
	if err != nil {
		return nil, err
	}

	if err := recreate(dir); err != nil {
		return nil, err
	}

	for n, f := range seq.Frames {
		if err := createFile(frameFile(dir, n+1), func(w *os.File) error {
			return rgbimage.Encode(w, f)
		}); err != nil {
			return nil, err
		}
	}

	if err := writeInfo(dir, i); err != nil {
		return nil, err
	}
	c.logger.Printf("Wrote %d frames of %dx%d to \"%s\"\n", i.Frames, i.Width, i.Height, dir)

	return i, nil
}
