// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootIsCurrent(t *testing.T) {
	root := New()
	assert.True(t, root.Current())
	assert.True(t, root.Clean())
}

func TestCloneDemotesParent(t *testing.T) {
	root := New()
	child := root.Clone()

	assert.False(t, root.Current())
	assert.True(t, child.Current())
}

func TestInOrderReleaseRestoresParent(t *testing.T) {
	root := New()
	child := root.Clone()

	child.Release()
	assert.True(t, root.Current())
	assert.True(t, root.Clean())
}

func TestReleasingRootWhileChildOutstandingIsHarmless(t *testing.T) {
	root := New()
	child := root.Clone()

	root.Release()

	assert.True(t, child.Current())
	assert.True(t, child.Clean())
}

func TestGrandchildIsTheOnlyCurrentToken(t *testing.T) {
	root := New()
	child := root.Clone()
	grandchild := child.Clone()

	assert.False(t, root.Current())
	assert.False(t, child.Current())
	assert.True(t, grandchild.Current())
}

func TestReleasingGrandchildRestoresChildNotRoot(t *testing.T) {
	root := New()
	child := root.Clone()
	grandchild := child.Clone()

	grandchild.Release()

	assert.False(t, root.Current())
	assert.True(t, child.Current())
}

func TestWaitWakesOnClone(t *testing.T) {
	root := New()
	select {
	case <-root.Wait():
		t.Fatal("unexpected wake before any clone")
	default:
	}

	root.Clone()

	select {
	case <-root.Wait():
	default:
		t.Fatal("expected wake after clone")
	}
}

func TestReleaseAfterCloneThenNewCloneSequence(t *testing.T) {
	root := New()

	first := root.Clone()
	require.True(t, first.Current())
	first.Release()
	require.True(t, root.Current())

	second := root.Clone()
	assert.True(t, second.Current())
	assert.False(t, first.Current())
}
