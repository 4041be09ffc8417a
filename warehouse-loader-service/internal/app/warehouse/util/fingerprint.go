package util

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"
)

// Версии списков отслеживаемых атрибутов. Версия входит в хеш,
// поэтому смена списка приводит к однократной перезаписи всех строк
const (
	ProductFingerprintVersion  = "product/v2"
	CustomerFingerprintVersion = "customer/v1"
)

// FingerprintField именованный атрибут, участвующий в отпечатке
type FingerprintField struct {
	Name  string
	Value string
}

// Field создает атрибут отпечатка с нормализованным значением
func Field(name, value string) FingerprintField {
	return FingerprintField{Name: name, Value: CanonicalString(value)}
}

// MoneyField нормализует денежное значение до двух знаков
func MoneyField(name string, value decimal.Decimal) FingerprintField {
	return FingerprintField{Name: name, Value: value.StringFixed(2)}
}

// FloatField нормализует число с плавающей точкой в кратчайшее представление
func FloatField(name string, value float64) FingerprintField {
	return FingerprintField{Name: name, Value: strconv.FormatFloat(value, 'f', -1, 64)}
}

// IntField нормализует целое число
func IntField(name string, value int) FingerprintField {
	return FingerprintField{Name: name, Value: strconv.Itoa(value)}
}

// CanonicalString обрезает пробелы по краям и схлопывает внутренние пробельные последовательности
func CanonicalString(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CanonicalKey естественный ключ без учета регистра
func CanonicalKey(s string) string {
	return strings.ToLower(CanonicalString(s))
}

// Fingerprint вычисляет детерминированный отпечаток набора атрибутов.
// Имена атрибутов входят в хеш, пустое значение и отсутствие значения неразличимы
func Fingerprint(version string, fields ...FingerprintField) string {
	var b strings.Builder
	b.WriteString(version)
	for _, f := range fields {
		b.WriteByte(0x1e)
		b.WriteString(f.Name)
		b.WriteByte(0x1f)
		b.WriteString(f.Value)
	}
	sum := blake2b.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Digest необратимый хеш секрета (пароль клиента не хранится в хранилище открыто)
func Digest(secret string) string {
	if secret == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
