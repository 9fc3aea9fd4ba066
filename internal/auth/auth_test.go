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

package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisabledAlwaysAccepts(t *testing.T) {
	assert.True(t, Disabled{}.Authenticate(Credentials{}))
	assert.True(t, Disabled{}.Authenticate(Credentials{HasUsername: true, Username: "bad"}))
}

func TestAllowAnonymousAcceptsNoCredentials(t *testing.T) {
	a := AllowAnonymous{Next: StaticTable{Users: map[string]string{"u": "p"}}}
	assert.True(t, a.Authenticate(Credentials{}))
}

func TestAllowAnonymousDefersWhenCredentialsPresent(t *testing.T) {
	a := AllowAnonymous{Next: StaticTable{Users: map[string]string{"u": "p"}}}

	assert.True(t, a.Authenticate(Credentials{HasUsername: true, Username: "u", HasPassword: true, Password: []byte("p")}))
	assert.False(t, a.Authenticate(Credentials{HasUsername: true, Username: "u", HasPassword: true, Password: []byte("wrong")}))
}

func TestStaticTableRequiresUsernameAndPassword(t *testing.T) {
	tbl := StaticTable{Users: map[string]string{"u": "p"}}

	assert.False(t, tbl.Authenticate(Credentials{}))
	assert.False(t, tbl.Authenticate(Credentials{HasUsername: true, Username: "u"}))
	assert.False(t, tbl.Authenticate(Credentials{HasUsername: true, Username: "other", HasPassword: true, Password: []byte("p")}))
	assert.True(t, tbl.Authenticate(Credentials{HasUsername: true, Username: "u", HasPassword: true, Password: []byte("p")}))
}
