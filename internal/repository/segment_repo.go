package repository

import (
	"github.com/pccr10001/daqring/internal/model"
	"gorm.io/gorm"
)

type SegmentRepository struct {
	db *gorm.DB
}

func NewSegmentRepository(db *gorm.DB) *SegmentRepository {
	return &SegmentRepository{db: db}
}

func (r *SegmentRepository) Create(segment *model.Segment) error {
	return r.db.Create(segment).Error
}

// SegmentFilter narrows List; zero values are ignored.
type SegmentFilter struct {
	Device string
	Limit  int
	Offset int
}

// List returns segments newest first.
func (r *SegmentRepository) List(f SegmentFilter) ([]model.Segment, int64, error) {
	q := r.db.Model(&model.Segment{})
	if f.Device != "" {
		q = q.Where("device = ?", f.Device)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if f.Limit <= 0 {
		f.Limit = 50
	}
	var list []model.Segment
	err := q.Order("id desc").Limit(f.Limit).Offset(f.Offset).Find(&list).Error
	return list, total, err
}

func (r *SegmentRepository) FindByID(id uint) (*model.Segment, error) {
	var segment model.Segment
	err := r.db.First(&segment, id).Error
	return &segment, err
}

// LastSequence returns the highest sequence stored for device, or 0.
func (r *SegmentRepository) LastSequence(device string) (uint64, error) {
	var seq uint64
	err := r.db.Model(&model.Segment{}).
		Where("device = ?", device).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&seq).Error
	return seq, err
}
