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

package kawa

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/packetd/kawa/buffer"
)

func TestStoreModifyInPlace(t *testing.T) {
	buf := buffer.New(32)
	buf.Append([]byte("Keep-Alive"))

	s := NewSlice(0, 10)
	s.Modify(buf, []byte("close"))

	// 缩短编辑保持 Slice 原地完成
	assert.Equal(t, StoreSlice, s.Kind())
	assert.Equal(t, 5, s.Len())
	assert.Equal(t, []byte("close"), s.Data(buf))
}

func TestStoreModifyEqualLength(t *testing.T) {
	buf := buffer.New(32)
	buf.Append([]byte("bar"))

	s := NewSlice(0, 3)
	s.Modify(buf, []byte("baz"))

	// 等长编辑同样保持 Slice
	assert.Equal(t, StoreSlice, s.Kind())
	assert.Equal(t, []byte("baz"), s.Data(buf))
}

func TestStoreModifyGrow(t *testing.T) {
	buf := buffer.New(32)
	buf.Append([]byte("bar"))

	s := NewSlice(0, 3)
	s.Modify(buf, []byte("bazz"))

	// 扩长编辑退化为一次 Owned 分配
	assert.Equal(t, StoreOwned, s.Kind())
	assert.Equal(t, []byte("bazz"), s.Data(buf))
	assert.Equal(t, []byte("bar"), buf.Bytes(0, 3))
}

func TestStorePushLeft(t *testing.T) {
	buf := buffer.New(32)
	buf.Append([]byte("xxxxhello"))

	s := NewSlice(4, 5)
	assert.Equal(t, []byte("hello"), s.Data(buf))

	assert.NoError(t, buf.Consume(4))
	delta := buf.Shift()
	s.PushLeft(delta)
	assert.Equal(t, 0, s.SliceStart())
	assert.Equal(t, []byte("hello"), s.Data(buf))

	// 非 Slice 变体不受 PushLeft 影响
	owned := NewOwned([]byte("abc"))
	owned.PushLeft(4)
	assert.Equal(t, []byte("abc"), owned.Data(buf))
}

func TestStoreTrim(t *testing.T) {
	buf := buffer.New(32)
	buf.Append([]byte("pedia"))

	s := NewSlice(0, 5)
	s.Trim(3)
	assert.Equal(t, []byte("ia"), s.Data(buf))

	st := NewStatic([]byte("0\r\n"))
	st.Trim(1)
	assert.Equal(t, []byte("\r\n"), st.Data(buf))

	o := NewOwned([]byte("abcd"))
	o.Trim(2)
	assert.Equal(t, []byte("cd"), o.Data(buf))
}

func TestStoreShared(t *testing.T) {
	record := []byte("curl/7.43.0 extra")
	s := NewShared(record, 0, 11)
	assert.Equal(t, StoreShared, s.Kind())
	assert.Equal(t, []byte("curl/7.43.0"), s.Data(nil))

	// 克隆即结构体拷贝 二者共享底层字节
	clone := s
	assert.Equal(t, s.Data(nil), clone.Data(nil))
}

func TestStoreOwnedIsCopy(t *testing.T) {
	src := []byte("value")
	s := NewOwned(src)
	src[0] = 'X'
	assert.Equal(t, []byte("value"), s.Data(nil))
}
