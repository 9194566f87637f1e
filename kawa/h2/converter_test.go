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

package h2

import (
	"testing"

	fasthttp2 "github.com/dgrr/http2"
	"github.com/stretchr/testify/assert"

	"github.com/packetd/kawa/buffer"
	"github.com/packetd/kawa/common"
	"github.com/packetd/kawa/kawa"
)

func parseMessage(t *testing.T, role kawa.Role, input string) *kawa.Kawa {
	t.Helper()
	buf := buffer.New(2048)
	assert.Equal(t, len(input), buf.Append([]byte(input)))
	k := kawa.New(buf, role, common.NewOptions())
	assert.NoError(t, k.Parse())
	if !k.Terminated() {
		assert.NoError(t, k.ParseEOF())
	}
	return k
}

// decodeFields 用解码方向的 HPACK 还原 header block fragment
func decodeFields(t *testing.T, fragment []byte) [][2]string {
	t.Helper()
	hp := fasthttp2.AcquireHPACK()
	defer fasthttp2.ReleaseHPACK(hp)

	var fields [][2]string
	var err error
	field := &fasthttp2.HeaderField{}
	buf := fragment
	for len(buf) > 0 {
		field.Reset()
		buf, err = hp.Next(field, buf)
		assert.NoError(t, err)
		fields = append(fields, [2]string{field.Key(), field.Value()})
	}
	return fields
}

func TestConvertRequest(t *testing.T) {
	input := "POST /submit HTTP/1.1\r\n" +
		"Host: www.example.com\r\n" +
		"Connection: keep-alive\r\n" +
		"Content-Length: 5\r\n" +
		"\r\n" +
		"hello"

	k := parseMessage(t, kawa.RoleRequest, input)
	conv := NewConverter()
	defer conv.Release()

	pl, err := conv.Convert(k)
	assert.NoError(t, err)
	assert.True(t, pl.EndStream)

	fields := decodeFields(t, pl.Headers)
	assert.Equal(t, [][2]string{
		{":method", "POST"},
		{":scheme", "http"},
		{":authority", "www.example.com"},
		{":path", "/submit"},
		{"content-length", "5"},
	}, fields)

	assert.Len(t, pl.Data, 1)
	assert.Equal(t, "hello", string(pl.Data[0]))
	assert.Nil(t, pl.Trailers)
}

func TestConvertResponseDropsChunked(t *testing.T) {
	input := "HTTP/1.1 200 OK\r\n" +
		"Transfer-Encoding: chunked\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"4\r\nWiki\r\n5\r\npedia\r\n0\r\nFoo: bar\r\n\r\n"

	k := parseMessage(t, kawa.RoleResponse, input)
	conv := NewConverter()
	defer conv.Release()

	pl, err := conv.Convert(k)
	assert.NoError(t, err)
	assert.True(t, pl.EndStream)

	// chunked 框架整体剔除 ChunkHeader 与 Transfer-Encoding 不出现
	fields := decodeFields(t, pl.Headers)
	assert.Equal(t, [][2]string{
		{":status", "200"},
		{"content-type", "text/plain"},
	}, fields)

	assert.Equal(t, []string{"Wiki", "pedia"}, func() []string {
		var out []string
		for _, d := range pl.Data {
			out = append(out, string(d))
		}
		return out
	}())

	trailers := decodeFields(t, pl.Trailers)
	assert.Equal(t, [][2]string{{"foo", "bar"}}, trailers)
}

func TestConvertAbsoluteURI(t *testing.T) {
	input := "GET https://www.example.com/index.html HTTP/1.1\r\n\r\n"
	k := parseMessage(t, kawa.RoleRequest, input)
	conv := NewConverter()
	defer conv.Release()

	pl, err := conv.Convert(k)
	assert.NoError(t, err)

	fields := decodeFields(t, pl.Headers)
	assert.Equal(t, [][2]string{
		{":method", "GET"},
		{":scheme", "https"},
		{":authority", "www.example.com"},
		{":path", "/index.html"},
	}, fields)
}

func TestConvertCookiesSplit(t *testing.T) {
	opts := common.NewOptions()
	opts.Merge("splitCookies", true)

	input := "GET / HTTP/1.1\r\nHost: x\r\nCookie: a=1; b=2\r\n\r\n"
	buf := buffer.New(1024)
	buf.Append([]byte(input))
	k := kawa.New(buf, kawa.RoleRequest, opts)
	assert.NoError(t, k.Parse())

	conv := NewConverter()
	defer conv.Release()
	pl, err := conv.Convert(k)
	assert.NoError(t, err)

	fields := decodeFields(t, pl.Headers)
	assert.Contains(t, fields, [2]string{"cookie", "a=1"})
	assert.Contains(t, fields, [2]string{"cookie", "b=2"})
}

func TestConvertRequiresTerminated(t *testing.T) {
	buf := buffer.New(1024)
	buf.Append([]byte("GET / HTTP/1.1\r\n"))
	k := kawa.New(buf, kawa.RoleRequest, common.NewOptions())
	assert.NoError(t, k.Parse())

	conv := NewConverter()
	defer conv.Release()
	_, err := conv.Convert(k)
	assert.Error(t, err)
}
