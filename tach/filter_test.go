// SPDX-License-Identifier: MIT
//
// Copyright © 2023 Carlos Ramirez.

package tach

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterAverage(t *testing.T) {
	f := NewFilter(3, 2)
	assert.Zero(t, f.Average())
	avg, _ := f.Add(3, 1)
	assert.Equal(t, 3.0, avg)
	avg, _ = f.Add(6, 1)
	assert.Equal(t, 4.5, avg)
	avg, _ = f.Add(9, 1)
	assert.Equal(t, 6.0, avg)
	// oldest drops out
	avg, _ = f.Add(12, 1)
	assert.Equal(t, 9.0, avg)
	assert.Equal(t, 9.0, f.Average())
}

func TestFilterStall(t *testing.T) {
	f := NewFilter(AverageSize, 3)
	_, stalled := f.Add(0, 0)
	assert.False(t, stalled)
	_, stalled = f.Add(0, 0)
	assert.False(t, stalled)
	_, stalled = f.Add(0, 0)
	assert.True(t, stalled)
	assert.True(t, f.Stalled())
	_, stalled = f.Add(0, 0)
	assert.True(t, stalled)
	_, stalled = f.Add(60, 1)
	assert.False(t, stalled)
	assert.False(t, f.Stalled())
}

func TestFilterReset(t *testing.T) {
	f := NewFilter(2, 1)
	f.Add(10, 0)
	assert.True(t, f.Stalled())
	f.Reset()
	assert.False(t, f.Stalled())
	assert.Zero(t, f.Average())
	avg, _ := f.Add(4, 1)
	assert.Equal(t, 4.0, avg)
}

func TestNewFilterLimits(t *testing.T) {
	f := NewFilter(0, 0)
	avg, stalled := f.Add(5, 0)
	assert.Equal(t, 5.0, avg)
	assert.True(t, stalled)
	avg, _ = f.Add(7, 1)
	assert.Equal(t, 7.0, avg)
}
