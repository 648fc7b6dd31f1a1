package storage

import (
	"database/sql"
	"encoding/json"
	"math"
	"strconv"
	"sync"

	"github.com/klauspost/compress/zstd"

	"noiseprop/internal/aggregator"
	"noiseprop/internal/path"
)

// Float is a float64 whose non-finite values are stored as JSON null and
// read back as NaN.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func (f *Float) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Float(math.NaN())
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// StoredPoint is a path vertex as kept for diagnostics.
type StoredPoint struct {
	Type       string `json:"type"`
	X          Float  `json:"x"`
	Y          Float  `json:"y"`
	Z          Float  `json:"z"`
	GroundZ    Float  `json:"groundZ"`
	BuildingID int    `json:"buildingId,omitempty"`
}

// StoredSegment holds the ground parameters of a segment.
type StoredSegment struct {
	G             Float `json:"g"`
	GPrime        Float `json:"gPrime"`
	D             Float `json:"d"`
	Dp            Float `json:"dp"`
	Zs            Float `json:"zs"`
	Zr            Float `json:"zr"`
	ZsPrime       Float `json:"zsPrime"`
	ZrPrime       Float `json:"zrPrime"`
	TestForm      Float `json:"testForm"`
	TestFormPrime Float `json:"testFormPrime"`
}

// StoredPath is the diagnostic record of one evaluated path.
type StoredPath struct {
	ReceiverID int64           `json:"receiverId"`
	SourceID   int64           `json:"sourceId"`
	Kind       string          `json:"kind"`
	Points     []StoredPoint   `json:"points"`
	Segments   []StoredSegment `json:"segments"`
	SR         []StoredSegment `json:"sr"`
}

func storedSegments(segs []path.Segment) []StoredSegment {
	out := make([]StoredSegment, len(segs))
	for i, s := range segs {
		out[i] = StoredSegment{
			G: Float(s.G), GPrime: Float(s.GPrime),
			D: Float(s.D), Dp: Float(s.Dp),
			Zs: Float(s.Zs), Zr: Float(s.Zr),
			ZsPrime: Float(s.ZsPrime), ZrPrime: Float(s.ZrPrime),
			TestForm: Float(s.TestForm), TestFormPrime: Float(s.TestFormPrime),
		}
	}
	return out
}

// NewStoredPath converts an evaluated path.
func NewStoredPath(rec aggregator.PathRecord) StoredPath {
	p := rec.Path
	points := make([]StoredPoint, len(p.Points))
	for i, pt := range p.Points {
		points[i] = StoredPoint{
			Type:       pt.Type.String(),
			X:          Float(pt.Position.X),
			Y:          Float(pt.Position.Y),
			Z:          Float(pt.Position.Z),
			GroundZ:    Float(pt.GroundZ),
			BuildingID: pt.BuildingID,
		}
	}
	return StoredPath{
		ReceiverID: rec.ReceiverID,
		SourceID:   rec.SourceID,
		Kind:       p.Kind().String(),
		Points:     points,
		Segments:   storedSegments(p.Segments),
		SR:         storedSegments(p.SR),
	}
}

// Shared codecs, EncodeAll and DecodeAll are safe for concurrent use.
var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

func codec() (*zstd.Encoder, *zstd.Decoder, error) {
	codecOnce.Do(func() {
		if encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault)); codecErr != nil {
			return
		}
		decoder, codecErr = zstd.NewReader(nil)
	})
	return encoder, decoder, codecErr
}

func encodePath(sp StoredPath) ([]byte, error) {
	enc, _, err := codec()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(sp)
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(data, nil), nil
}

func decodePath(blob []byte) (StoredPath, error) {
	var sp StoredPath
	_, dec, err := codec()
	if err != nil {
		return sp, err
	}
	data, err := dec.DecodeAll(blob, nil)
	if err != nil {
		return sp, err
	}
	err = json.Unmarshal(data, &sp)
	return sp, err
}

// SavePaths stores the retained paths of a run as zstd-compressed JSON.
func (db *DB) SavePaths(runID string, paths []aggregator.PathRecord) error {
	return db.WithTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO paths (run_id, receiver_id, source_id, seq, kind, geometry)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return storageError("prepare path insert", err)
		}
		defer stmt.Close()

		type pair struct{ r, s int64 }
		seq := make(map[pair]int)
		for _, rec := range paths {
			sp := NewStoredPath(rec)
			blob, err := encodePath(sp)
			if err != nil {
				return storageError("encode path", err)
			}
			k := pair{rec.ReceiverID, rec.SourceID}
			if _, err := stmt.Exec(runID, rec.ReceiverID, rec.SourceID, seq[k], sp.Kind, blob); err != nil {
				return storageError("insert path", err)
			}
			seq[k]++
		}
		return nil
	})
}

// Paths returns the stored paths of a receiver-source pair in insertion
// order.
func (db *DB) Paths(runID string, receiverID, sourceID int64) ([]StoredPath, error) {
	rows, err := db.conn.Query(`
		SELECT geometry FROM paths
		WHERE run_id = ? AND receiver_id = ? AND source_id = ?
		ORDER BY seq
	`, runID, receiverID, sourceID)
	if err != nil {
		return nil, storageError("query paths", err)
	}
	defer rows.Close()

	var out []StoredPath
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, storageError("scan path", err)
		}
		sp, err := decodePath(blob)
		if err != nil {
			return nil, storageError("decode path", err)
		}
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("query paths", err)
	}
	return out, nil
}
