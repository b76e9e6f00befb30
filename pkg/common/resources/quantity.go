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
	"errors"
	"math/big"
	"regexp"
	"strconv"
)

// Quantities in configuration and job requests:
// <quantity>     ::= <signedNumber><suffix>
// <signedNumber> ::= <digits> | <sign><digits>
// <suffix>       ::= <binarySI> | <decimalSI>
// <binarySI>     ::= Ki | Mi | Gi | Ti | Pi | Ei
// <decimalSI>    ::= "" | k | K | M | G | T | P | E
// Memory is tracked in MB: ParseMemory converts a suffixed value to MB, a plain number is already MB.

var whitespace = regexp.MustCompile(`\s+`)
var legal = regexp.MustCompile(`^(?P<Number>[+-]?[0-9]+)(?P<Suffix>[A-Za-z]*)$`)

var multipliers = map[string]int64{
	"":   1,
	"k":  1e3,
	"K":  1e3,
	"M":  1e6,
	"G":  1e9,
	"T":  1e12,
	"P":  1e15,
	"E":  1e18,
	"Ki": 1 << 10,
	"Mi": 1 << 20,
	"Gi": 1 << 30,
	"Ti": 1 << 40,
	"Pi": 1 << 50,
	"Ei": 1 << 60,
}

const megabyte = 1 << 20

// ParseQuantity is used to parse user-provided values into int64 quantities.
func ParseQuantity(value string) (Quantity, error) {
	number, scale, err := split(value)
	if err != nil {
		return 0, err
	}
	return scaled(number, scale, 1)
}

// ParseMemory parses a memory value into MB.
func ParseMemory(value string) (Quantity, error) {
	number, scale, err := split(value)
	if err != nil {
		return 0, err
	}
	if scale == 1 {
		return Quantity(number), nil
	}
	return scaled(number, scale, megabyte)
}

func split(value string) (int64, int64, error) {
	value = whitespace.ReplaceAllLiteralString(value, "")
	parts := legal.FindStringSubmatch(value)
	if len(parts) != 3 {
		return 0, 0, errors.New("invalid quantity")
	}
	number, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, errors.New("invalid quantity: overflow")
	}
	scale, ok := multipliers[parts[2]]
	if !ok {
		return 0, 0, errors.New("invalid suffix")
	}
	return number, scale, nil
}

func scaled(number, scale, divisor int64) (Quantity, error) {
	result := big.NewInt(number)
	result.Mul(result, big.NewInt(scale))
	if divisor > 1 {
		result.Quo(result, big.NewInt(divisor))
	}
	if !result.IsInt64() {
		return 0, errors.New("invalid quantity: overflow")
	}
	return Quantity(result.Int64()), nil
}
