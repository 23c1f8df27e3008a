package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/JustJay7/ojv-scraper/internal/scraper"
	"gorm.io/gorm"
)

// CaseRecord is the durable copy of a case, keyed by its rol. Everything but
// the rol and the creation time is replaced on each sighting.
type CaseRecord struct {
	ID                   uint            `json:"id" gorm:"primaryKey"`
	Rol                  string          `json:"rol" gorm:"uniqueIndex;not null"`
	Caratulado           string          `json:"caratulado"`
	Tribunal             string          `json:"tribunal"`
	FechaIngreso         string          `json:"fecha_ingreso"`
	Estado               string          `json:"estado"`
	Competencia          string          `json:"competencia" gorm:"index"`
	HistorialMovimientos MovementHistory `json:"historial_movimientos" gorm:"type:text"`
	FechaCreacion        time.Time       `json:"fecha_creacion"`
	FechaActualizacion   time.Time       `json:"fecha_actualizacion"`
}

// MovementHistory is stored as a JSON array in a text column.
type MovementHistory []scraper.Movement

func (h MovementHistory) Value() (driver.Value, error) {
	if h == nil {
		h = MovementHistory{}
	}
	b, err := json.Marshal([]scraper.Movement(h))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (h *MovementHistory) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*h = MovementHistory{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported movement history type %T", src)
	}
	if len(raw) == 0 {
		*h = MovementHistory{}
		return nil
	}
	return json.Unmarshal(raw, (*[]scraper.Movement)(h))
}

// ScrapeLog records every scrape request served by the API.
type ScrapeLog struct {
	gorm.Model
	Kind         string    `json:"kind"`
	Roles        string    `json:"roles"`
	Competencies string    `json:"competencies"`
	Results      int       `json:"results"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message"`
	QueryTime    time.Time `json:"query_time"`
	IPAddress    string    `json:"ip_address"`
}

func (CaseRecord) TableName() string {
	return "causas"
}

func (ScrapeLog) TableName() string {
	return "scrape_logs"
}
