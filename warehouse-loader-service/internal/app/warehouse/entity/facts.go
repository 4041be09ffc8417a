package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartFact агрегат по корзине, загружается не более одного раза на cart_id
type CartFact struct {
	CartSK     int64           `json:"cart_sk" gorm:"column:cart_sk;primaryKey;autoIncrement"`
	CartID     string          `json:"cart_id" gorm:"column:cart_id;not null;uniqueIndex"`
	CustomerSK *int64          `json:"customer_sk" gorm:"column:customer_sk;index"` // NULL, если клиент не найден
	DateKey    int             `json:"date_key" gorm:"column:date_key;not null;index"`
	CartDate   time.Time       `json:"cart_date" gorm:"column:cart_date;not null"`
	TotalItems int             `json:"total_items" gorm:"column:total_items;not null"`
	TotalValue decimal.Decimal `json:"total_value" gorm:"column:total_value;type:decimal(12,2);not null"`
	CreatedAt  time.Time       `json:"created_at" gorm:"column:created_at;not null"`

	Items []CartItemFact `json:"-" gorm:"foreignKey:CartSK;references:CartSK"`
}

// TableName указывает имя таблицы для GORM
func (CartFact) TableName() string {
	return "fact_cart"
}

// CartItemFact строка корзины; (cart_sk, line_no) - ключ идемпотентности
type CartItemFact struct {
	CartItemSK int64           `json:"cart_item_sk" gorm:"column:cart_item_sk;primaryKey;autoIncrement"`
	CartSK     int64           `json:"cart_sk" gorm:"column:cart_sk;not null;uniqueIndex:ux_fact_cart_item_line,priority:1"`
	LineNo     int             `json:"line_no" gorm:"column:line_no;not null;uniqueIndex:ux_fact_cart_item_line,priority:2"`
	ProductSK  int64           `json:"product_sk" gorm:"column:product_sk;not null;index"`
	Quantity   int             `json:"quantity" gorm:"column:quantity;not null;check:quantity > 0"`
	UnitPrice  decimal.Decimal `json:"unit_price" gorm:"column:unit_price;type:decimal(12,2);not null"`
	LineTotal  decimal.Decimal `json:"line_total" gorm:"column:line_total;type:decimal(12,2);not null"`
	CreatedAt  time.Time       `json:"created_at" gorm:"column:created_at;not null"`
}

// TableName указывает имя таблицы для GORM
func (CartItemFact) TableName() string {
	return "fact_cart_item"
}

// CartLineKey ключ строки корзины в fact_cart_item
type CartLineKey struct {
	CartSK int64 `gorm:"column:cart_sk"`
	LineNo int   `gorm:"column:line_no"`
}
