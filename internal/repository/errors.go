// Package repository defines error values that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// service components to distinguish between different failure scenarios
// without inspecting driver-specific errors. For example, ErrDuplicate
// signals that an insert violated a unique key (such as applying the
// same coupon to the same booking twice), while ErrNotFound reports an
// unknown identity.
package repository

import "errors"

// ErrNotFound is returned when a requested row does not exist. Services
// translate this into their own not-found error kind.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique constraint,
// such as the (booking_id, coupon_id) key on booking_coupons. Services
// translate this into a conflict for the caller.
var ErrDuplicate = errors.New("duplicate")
