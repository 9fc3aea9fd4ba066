/*
 *    Copyright 2026 The Mercurio Authors
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package packet

// Version identifies the MQTT protocol level negotiated at CONNECT. The
// codec is version-aware: before CONNECT is parsed a decoder only knows
// the fixed header and the CONNECT variable header; afterwards every
// other packet is decoded against the bound Version.
type Version byte

const (
	VersionUnknown Version = 0
	Version31      Version = 3 // MQIsdp, level 3
	Version311     Version = 4 // MQTT, level 4
	Version5       Version = 5 // MQTT, level 5
)

func (v Version) String() string {
	switch v {
	case Version31:
		return "3.1"
	case Version311:
		return "3.1.1"
	case Version5:
		return "5.0"
	default:
		return "unknown"
	}
}

// IsV3 reports whether v is 3.1 or 3.1.1.
func (v Version) IsV3() bool {
	return v == Version31 || v == Version311
}

// IsV5 reports whether v is 5.0.
func (v Version) IsV5() bool {
	return v == Version5
}

var protocolNameForVersion = map[Version]string{
	Version31:  "MQIsdp",
	Version311: "MQTT",
	Version5:   "MQTT",
}

// protocolNameValid reports whether name is the expected protocol name
// for the given protocol level, per MQTT-3.1.2-1.
func protocolNameValid(name string, level Version) bool {
	expect, ok := protocolNameForVersion[level]
	return ok && expect == name
}
