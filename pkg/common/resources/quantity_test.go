/*
 Licensed to the Apache Software Foundation (ASF) under one
 or more contributor license agreements.  See the NOTICE file
 distributed with this work for additional information
 regarding copyright ownership.  The ASF licenses this file
 to you under the Apache License, Version 2.0 (the
 "License"); you may not use this file except in compliance
 with the License.  You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package resources

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestParseQuantity(t *testing.T) {
	tests := map[string]struct {
		input string
		qty   Quantity
		err   string
	}{
		"0":          {input: "0", qty: 0},
		"1":          {input: "1", qty: 1},
		"-1":         {input: "-1", qty: -1},
		"spaces":     {input: " 25k ", qty: 25 * 1000},
		"max":        {input: "9223372036854775807", qty: 9223372036854775807},
		"overflow":   {input: "9223372036854775808", err: "overflow"},
		"overflow2":  {input: "1000E", err: "overflow"},
		"wrong unit": {input: "5X", err: "invalid"},
		"milli":      {input: "500m", err: "invalid"},
		"empty":      {input: "", err: "invalid"},
		"2k":         {input: "2k", qty: 2 * 1000},
		"3M":         {input: "3M", qty: 3 * 1000 * 1000},
		"2Ki":        {input: "2Ki", qty: 2 * 1024},
		"3Mi":        {input: "3Mi", qty: 3 * 1024 * 1024},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			result, err := ParseQuantity(test.input)
			if test.err != "" {
				assert.ErrorContains(t, err, test.err)
				return
			}
			assert.NilError(t, err)
			assert.Equal(t, result, test.qty)
		})
	}
}

func TestParseMemory(t *testing.T) {
	tests := map[string]struct {
		input string
		qty   Quantity
		err   bool
	}{
		"plain is MB": {input: "2048", qty: 2048},
		"Gi":          {input: "4Gi", qty: 4096},
		"Mi":          {input: "512Mi", qty: 512},
		"Ki rounds":   {input: "1024Ki", qty: 1},
		"G decimal":   {input: "1G", qty: 953},
		"bad":         {input: "4Q", err: true},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			result, err := ParseMemory(test.input)
			if test.err {
				assert.Assert(t, err != nil)
				return
			}
			assert.NilError(t, err)
			assert.Equal(t, result, test.qty)
		})
	}
}
