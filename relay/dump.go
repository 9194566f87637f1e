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

package relay

import (
	"github.com/goccy/go-json"

	"github.com/packetd/kawa/kawa"
	"github.com/packetd/kawa/logger"
)

// blockView Block 的日志视图 字节内容在此处发生拷贝 仅用于调试
type blockView struct {
	Kind   string     `json:"kind"`
	Method string     `json:"method,omitempty"`
	URI    string     `json:"uri,omitempty"`
	Code   string     `json:"code,omitempty"`
	Reason string     `json:"reason,omitempty"`
	Key    string     `json:"key,omitempty"`
	Val    string     `json:"val,omitempty"`
	Size   string     `json:"size,omitempty"`
	Data   int        `json:"data,omitempty"`
	Flags  kawa.Flags `json:"flags,omitempty"`
}

var blockKindNames = map[kawa.BlockKind]string{
	kawa.BlockStatusLine:  "statusline",
	kawa.BlockHeader:      "header",
	kawa.BlockCookies:     "cookies",
	kawa.BlockChunkHeader: "chunkheader",
	kawa.BlockChunk:       "chunk",
	kawa.BlockFlags:       "flags",
}

// dumpBlocks 以 JSON 形式记录当前未序列化的 Block 流
func dumpBlocks(k *kawa.Kawa) {
	if k.Len() == 0 {
		return
	}

	buf := k.Storage()
	views := make([]blockView, 0, k.Len())
	for i := 0; i < k.Len(); i++ {
		blk := k.Block(i)
		view := blockView{Kind: blockKindNames[blk.Kind]}

		switch blk.Kind {
		case kawa.BlockStatusLine:
			sl := blk.StatusLine
			if sl.IsRequest {
				view.Method = string(sl.Method.Data(buf))
				view.URI = string(sl.URI.Data(buf))
			} else {
				view.Code = string(sl.Code.Data(buf))
				view.Reason = string(sl.Reason.Data(buf))
			}
		case kawa.BlockHeader:
			view.Key = string(blk.Key.Data(buf))
			view.Val = string(blk.Val.Data(buf))
		case kawa.BlockCookies:
			view.Val = cookiesText(k, blk)
		case kawa.BlockChunkHeader:
			view.Size = string(blk.SizeText.Data(buf))
		case kawa.BlockChunk:
			view.Data = blk.Data.Len()
		case kawa.BlockFlags:
			view.Flags = blk.Flags
		}
		views = append(views, view)
	}

	data, err := json.Marshal(views)
	if err != nil {
		logger.Warnf("marshal block views failed: %v", err)
		return
	}
	logger.Infof("blocks: %s", data)
}

func cookiesText(k *kawa.Kawa, blk *kawa.Block) string {
	buf := k.Storage()
	text := make([]byte, 0, 64)
	for i := range blk.Pairs {
		if i > 0 {
			text = append(text, "; "...)
		}
		text = append(text, blk.Pairs[i].Key.Data(buf)...)
		if blk.Pairs[i].Val.Kind() != kawa.StoreEmpty {
			text = append(text, '=')
			text = append(text, blk.Pairs[i].Val.Data(buf)...)
		}
	}
	return string(text)
}
