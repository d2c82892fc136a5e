package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gsarrafian/PneumaticsApp/datamodel"
	"github.com/gsarrafian/PneumaticsApp/util"
	"github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"
)

var pistonsBucket = []byte("pistons")

// DB keeps the settings of each piston in a bbolt database, one JSON value per piston id
type DB struct {
	*bbolt.DB
	log *logrus.Entry
}

// Open opens or creates the database at path
func Open(path string) (*DB, error) {
	bdb, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open settings db %s: %w", path, err)
	}
	err = bdb.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(pistonsBucket)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("create settings bucket: %w", err)
	}
	db := &DB{bdb, util.Logger.WithField("module", "store")}
	db.log.WithField("path", path).Debug("opened settings db")
	return db, nil
}

func getSettings(b *bbolt.Bucket, pistonID string) (s datamodel.SettingsJSON, ok bool, err error) {
	data := b.Get([]byte(pistonID))
	if data == nil {
		return
	}
	if err = json.Unmarshal(data, &s); err != nil {
		err = fmt.Errorf("could not unmarshal settings of %s: %w", pistonID, err)
		return
	}
	ok = true
	return
}

// Settings gets the stored settings of a piston. ok is false if nothing was stored for it
func (db *DB) Settings(pistonID string) (s datamodel.SettingsJSON, ok bool, err error) {
	err = db.View(func(tx *bbolt.Tx) error {
		s, ok, err = getSettings(tx.Bucket(pistonsBucket), pistonID)
		return err
	})
	return
}

// UpdateSettings changes the stored settings of a piston with update in a single transaction
func (db *DB) UpdateSettings(pistonID string, update func(s *datamodel.SettingsJSON)) error {
	return db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(pistonsBucket)
		s, _, err := getSettings(b, pistonID)
		if err != nil {
			return err
		}
		update(&s)
		payload, err := json.Marshal(&s)
		if err != nil {
			return err
		}
		return b.Put([]byte(pistonID), payload)
	})
}

// AllSettings gets the stored settings of every piston
func (db *DB) AllSettings() (map[string]datamodel.SettingsJSON, error) {
	all := make(map[string]datamodel.SettingsJSON)
	err := db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(pistonsBucket).ForEach(func(k, v []byte) error {
			var s datamodel.SettingsJSON
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("could not unmarshal settings of %s: %w", k, err)
			}
			all[string(k)] = s
			return nil
		})
	})
	return all, err
}
