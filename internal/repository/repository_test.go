package repository

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pccr10001/daqring/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Device{}, &model.Segment{}, &model.Webhook{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestDeviceUpsertUpdatesExistingRow(t *testing.T) {
	repo := NewDeviceRepository(openTestDB(t))

	require.NoError(t, repo.Upsert(&model.Device{Name: "/dev/ttyUSB0", Kind: "serial", Status: model.DeviceOnline, LastSeen: time.Now()}))
	require.NoError(t, repo.Upsert(&model.Device{Name: "/dev/ttyUSB0", Kind: "serial", VID: "1A86", Status: model.DeviceOnline, LastSeen: time.Now()}))

	list, err := repo.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "1A86", list[0].VID)

	require.NoError(t, repo.MarkAllOffline())
	d, err := repo.FindByName("/dev/ttyUSB0")
	require.NoError(t, err)
	assert.Equal(t, model.DeviceOffline, d.Status)

	require.NoError(t, repo.SetStatus("/dev/ttyUSB0", model.DeviceOnline))
	d, err = repo.FindByName("/dev/ttyUSB0")
	require.NoError(t, err)
	assert.Equal(t, model.DeviceOnline, d.Status)
}

func TestSegmentListFiltersAndPages(t *testing.T) {
	repo := NewSegmentRepository(openTestDB(t))

	for i := 1; i <= 5; i++ {
		dev := "a"
		if i%2 == 0 {
			dev = "b"
		}
		require.NoError(t, repo.Create(&model.Segment{Device: dev, Sequence: uint64(i), Samples: i * 10}))
	}

	list, total, err := repo.List(SegmentFilter{Device: "a"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, list, 3)
	assert.EqualValues(t, 5, list[0].Sequence)

	list, total, err = repo.List(SegmentFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, list, 2)
	assert.EqualValues(t, 4, list[0].Sequence)

	seg, err := repo.FindByID(list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 40, seg.Samples)

	last, err := repo.LastSequence("b")
	require.NoError(t, err)
	assert.EqualValues(t, 4, last)

	last, err = repo.LastSequence("missing")
	require.NoError(t, err)
	assert.EqualValues(t, 0, last)
}

func TestWebhookFindEnabledMatchesWildcardDevice(t *testing.T) {
	db := openTestDB(t)
	repo := NewWebhookRepository(db)

	require.NoError(t, repo.Create(&model.Webhook{URL: "http://all", Enabled: true}))
	require.NoError(t, repo.Create(&model.Webhook{URL: "http://a", Device: "a", Enabled: true}))
	require.NoError(t, repo.Create(&model.Webhook{URL: "http://b", Device: "b", Enabled: true}))
	off := &model.Webhook{URL: "http://off", Device: "a", Enabled: true}
	require.NoError(t, repo.Create(off))
	require.NoError(t, db.Model(off).Update("enabled", false).Error)

	list, err := repo.FindEnabled("a")
	require.NoError(t, err)
	urls := make([]string, 0, len(list))
	for _, wh := range list {
		urls = append(urls, wh.URL)
	}
	assert.ElementsMatch(t, []string{"http://all", "http://a"}, urls)

	require.NoError(t, repo.Delete(list[0].ID))
	all, err := repo.List()
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestWebhookSetEnabled(t *testing.T) {
	repo := NewWebhookRepository(openTestDB(t))

	wh := &model.Webhook{URL: "http://x", Enabled: true}
	require.NoError(t, repo.Create(wh))
	require.NoError(t, repo.SetEnabled(wh.ID, false))

	list, err := repo.FindEnabled("")
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, repo.SetEnabled(wh.ID, true))
	list, err = repo.FindEnabled("any")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.ErrorIs(t, repo.SetEnabled(9999, true), gorm.ErrRecordNotFound)
}

func TestUserRepository(t *testing.T) {
	repo := NewUserRepository(openTestDB(t))

	n, err := repo.Count()
	require.NoError(t, err)
	assert.Zero(t, n)

	u := &model.User{Username: "alice", PasswordHash: "h1", Role: model.RoleAdmin}
	require.NoError(t, repo.Create(u))
	require.NoError(t, repo.Create(&model.User{Username: "bob", PasswordHash: "h2", Role: model.RoleUser}))

	got, err := repo.FindByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	require.NoError(t, repo.SetPasswordHash(u.ID, "h3"))
	got, err = repo.FindByID(u.ID)
	require.NoError(t, err)
	assert.Equal(t, "h3", got.PasswordHash)

	list, err := repo.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].Username)

	require.NoError(t, repo.Delete(u.ID))
	_, err = repo.FindByID(u.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	n, err = repo.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
