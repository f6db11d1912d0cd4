package repository

import (
	"github.com/pccr10001/daqring/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

func (r *DeviceRepository) Upsert(device *model.Device) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "port_name", "vid", "pid", "serial", "status", "last_seen"}),
	}).Create(device).Error
}

func (r *DeviceRepository) FindByName(name string) (*model.Device, error) {
	var device model.Device
	err := r.db.First(&device, "name = ?", name).Error
	return &device, err
}

func (r *DeviceRepository) List() ([]model.Device, error) {
	var list []model.Device
	err := r.db.Order("name").Find(&list).Error
	return list, err
}

func (r *DeviceRepository) SetStatus(name, status string) error {
	return r.db.Model(&model.Device{}).Where("name = ?", name).Update("status", status).Error
}

func (r *DeviceRepository) MarkAllOffline() error {
	return r.db.Model(&model.Device{}).Where("1 = 1").Update("status", model.DeviceOffline).Error
}
