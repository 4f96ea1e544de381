// Package sqlite is a persistent bucket store on an embedded SQLite
// database (modernc.org/sqlite, no cgo).
//
// Entries live in one table keyed by an autoincrement id, which gives
// bucket reads their insertion order. Vectors are stored as codec
// encoded blobs so sparse vectors keep their sparse form.
//
//	s, err := sqlite.Open(ctx, "lsh.db")
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//	eng, err := nearlsh.New(100, hashes, nearlsh.WithStorage(s))
package sqlite
