package repository

import (
	"github.com/pccr10001/daqring/internal/model"
	"gorm.io/gorm"
)

type WebhookRepository struct {
	db *gorm.DB
}

func NewWebhookRepository(db *gorm.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

func (r *WebhookRepository) Create(webhook *model.Webhook) error {
	return r.db.Create(webhook).Error
}

func (r *WebhookRepository) List() ([]model.Webhook, error) {
	var list []model.Webhook
	err := r.db.Order("id").Find(&list).Error
	return list, err
}

// FindEnabled returns enabled webhooks bound to device or to every device.
func (r *WebhookRepository) FindEnabled(device string) ([]model.Webhook, error) {
	var list []model.Webhook
	err := r.db.Where("(device = ? OR device = '') AND enabled = ?", device, true).Find(&list).Error
	return list, err
}

func (r *WebhookRepository) Delete(id uint) error {
	return r.db.Delete(&model.Webhook{}, id).Error
}

// SetEnabled switches a webhook on or off. It returns gorm.ErrRecordNotFound
// for an unknown id.
func (r *WebhookRepository) SetEnabled(id uint, enabled bool) error {
	res := r.db.Model(&model.Webhook{}).Where("id = ?", id).Update("enabled", enabled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
