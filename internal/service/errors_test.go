package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"

	"riskhub_v1_202610/pkg/pseudonym"
)

func TestWrapStorage(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{gorm.ErrRecordNotFound, KindNotFound},
		{fmt.Errorf("lookup: %w", gorm.ErrRecordNotFound), KindNotFound},
		{pseudonym.ErrConfiguration, KindConfiguration},
		{context.DeadlineExceeded, KindStorage},
		{errors.New("connection reset"), KindStorage},
		{NewValidationError(map[string]string{"a": "required"}), KindValidation},
	}
	for _, tt := range tests {
		if got := KindOf(WrapStorage("op", tt.err)); got != tt.want {
			t.Errorf("WrapStorage(%v) kind = %s, want %s", tt.err, got, tt.want)
		}
	}
	if WrapStorage("op", nil) != nil {
		t.Error("WrapStorage(nil) should be nil")
	}
}

func TestNewValidationError_ListsFields(t *testing.T) {
	err := NewValidationError(map[string]string{"voucher_number": "required", "customer_hash": "len=64"})
	if err.Error() != "validation: 参数校验失败: customer_hash, voucher_number" {
		t.Errorf("Error() = %q", err.Error())
	}
}
