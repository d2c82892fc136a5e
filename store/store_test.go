package store

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/gsarrafian/PneumaticsApp/datamodel"
	"github.com/gsarrafian/PneumaticsApp/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*DB, string) {
	util.Logger.Out = io.Discard
	path := filepath.Join(t.TempDir(), "pistond.db")
	db, err := Open(path)
	require.NoError(t, err)
	return db, path
}

func TestSettings(t *testing.T) {
	ass, req := assert.New(t), require.New(t)
	db, _ := openTemp(t)
	defer db.Close()

	_, ok, err := db.Settings("piston1")
	req.NoError(err)
	ass.False(ok, "nothing stored yet")

	psi := 45.5
	req.NoError(db.UpdateSettings("piston1", func(s *datamodel.SettingsJSON) { s.DesiredPressure = &psi }))
	on, off, cycles := 1.5, 2.0, 10
	req.NoError(db.UpdateSettings("piston1", func(s *datamodel.SettingsJSON) {
		s.RecordStart(&datamodel.RequestJSON{TimeOn: &on, TimeOff: &off, Cycles: &cycles})
	}))

	s, ok, err := db.Settings("piston1")
	req.NoError(err)
	req.True(ok)
	ass.Equal(45.5, *s.DesiredPressure, "a start should keep the stored pressure")
	ass.Equal(1.5, *s.TimeOn)
	ass.Equal(2.0, *s.TimeOff)
	ass.Equal(10, *s.Cycles)

	req.NoError(db.UpdateSettings("piston1", func(s *datamodel.SettingsJSON) {
		s.RecordStart(&datamodel.RequestJSON{TimeOn: &on, TimeOff: &off})
	}))
	s, _, err = db.Settings("piston1")
	req.NoError(err)
	ass.Nil(s.Cycles, "an unbounded start should clear the cycles")

	_, ok, err = db.Settings("piston2")
	req.NoError(err)
	ass.False(ok, "pistons are stored separately")
}

func TestSettingsSurviveReopen(t *testing.T) {
	ass, req := assert.New(t), require.New(t)
	db, path := openTemp(t)

	p1, p2 := 60.0, 80.0
	req.NoError(db.UpdateSettings("piston1", func(s *datamodel.SettingsJSON) { s.DesiredPressure = &p1 }))
	req.NoError(db.UpdateSettings("piston2", func(s *datamodel.SettingsJSON) { s.DesiredPressure = &p2 }))
	req.NoError(db.Close())

	db, err := Open(path)
	req.NoError(err)
	defer db.Close()
	all, err := db.AllSettings()
	req.NoError(err)
	req.Len(all, 2)
	ass.Equal(60.0, *all["piston1"].DesiredPressure)
	ass.Equal(80.0, *all["piston2"].DesiredPressure)
}

func TestOpenLocked(t *testing.T) {
	db, path := openTemp(t)
	defer db.Close()

	_, err := Open(path)
	assert.Error(t, err, "a second open should time out on the file lock")
}
