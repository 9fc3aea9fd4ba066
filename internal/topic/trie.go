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

package topic

import (
	"strings"
	"sync"
)

// Options is the per-subscription state the router needs, version-
// agnostic (v5-only fields are simply zero for v3 sessions).
type Options struct {
	MaxQoS            byte
	NoLocal           bool
	RetainAsPublished bool
	RetainHandling    byte
	SubscriptionID    int // 0 means "none"
}

// Subscriber is one (client, options) pair matching a publish.
type Subscriber struct {
	ClientID string
	Options  Options
}

// node is one level of the subscription trie. Exact-match children are
// keyed by literal level string; '+' and '#' have dedicated pointers so
// the matching walk never has to special-case map lookups for them.
type node struct {
	children map[string]*node
	plus     *node
	hash     *node
	subs     map[string]Options // clientID -> options, only set subscriptions rooted exactly at this node
}

func newNode() *node {
	return &node{children: make(map[string]*node)}
}

// Index is the subscription trie described by spec §3/§4.4. Reads
// (Match) take the read lock only long enough to snapshot the matching
// set; writes (Subscribe/Unsubscribe/RemoveSession) take the write lock.
type Index struct {
	mu   sync.RWMutex
	root *node
	// bySubscriber tracks, per client, filter -> options, so a session
	// drop (RemoveSession) doesn't have to walk the whole trie, and so
	// the options of an existing subscription can be introspected (e.g.
	// to decide v5 retain_handling=1 "did not previously exist").
	bySubscriber map[string]map[string]Options
}

func NewIndex() *Index {
	return &Index{root: newNode(), bySubscriber: make(map[string]map[string]Options)}
}

// Subscribe registers clientID for filter with the given options,
// replacing any existing subscription for the same (clientID, filter)
// pair. It reports whether a subscription already existed.
func (idx *Index) Subscribe(clientID, filter string, opts Options) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	n := idx.descend(filter, true)
	_, existed := n.subs[clientID]
	if n.subs == nil {
		n.subs = make(map[string]Options)
	}
	n.subs[clientID] = opts

	if idx.bySubscriber[clientID] == nil {
		idx.bySubscriber[clientID] = make(map[string]Options)
	}
	idx.bySubscriber[clientID][filter] = opts
	return existed
}

// Unsubscribe removes clientID's subscription to filter. It reports
// whether a subscription existed to remove.
func (idx *Index) Unsubscribe(clientID, filter string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	n := idx.descend(filter, false)
	if n == nil || n.subs == nil {
		return false
	}
	_, existed := n.subs[clientID]
	delete(n.subs, clientID)
	if subs, ok := idx.bySubscriber[clientID]; ok {
		delete(subs, filter)
		if len(subs) == 0 {
			delete(idx.bySubscriber, clientID)
		}
	}
	return existed
}

// RemoveSession drops every subscription held by clientID, used on
// session destruction (clean session end, or expiry).
func (idx *Index) RemoveSession(clientID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for filter := range idx.bySubscriber[clientID] {
		if n := idx.descend(filter, false); n != nil && n.subs != nil {
			delete(n.subs, clientID)
		}
	}
	delete(idx.bySubscriber, clientID)
}

// Filters returns the set of filters clientID currently holds, used to
// redeliver retained messages on resume and to report subscriptions.
func (idx *Index) Filters(clientID string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]string, 0, len(idx.bySubscriber[clientID]))
	for f := range idx.bySubscriber[clientID] {
		out = append(out, f)
	}
	return out
}

// All returns a copy of clientID's filter -> options map.
func (idx *Index) All(clientID string) map[string]Options {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make(map[string]Options, len(idx.bySubscriber[clientID]))
	for f, o := range idx.bySubscriber[clientID] {
		out[f] = o
	}
	return out
}

// descend walks/creates (if create) the path for filter and returns its
// terminal node. Returns nil if create is false and the path doesn't
// exist.
func (idx *Index) descend(filter string, create bool) *node {
	levels := strings.Split(filter, "/")
	n := idx.root
	for _, lvl := range levels {
		var next *node
		switch lvl {
		case "+":
			if n.plus == nil {
				if !create {
					return nil
				}
				n.plus = newNode()
			}
			next = n.plus
		case "#":
			if n.hash == nil {
				if !create {
					return nil
				}
				n.hash = newNode()
			}
			next = n.hash
		default:
			c, ok := n.children[lvl]
			if !ok {
				if !create {
					return nil
				}
				c = newNode()
				n.children[lvl] = c
			}
			next = c
		}
		n = next
	}
	return n
}

// Match walks the trie for topic and returns every (client, options)
// whose filter matches it, honoring the $-prefix exception for # and +
// (spec §4.4). The caller (router) holds no lock across I/O: Match
// itself takes the read lock only for the duration of the walk and
// returns a fully-detached snapshot.
func (idx *Index) Match(name string) []Subscriber {
	levels := strings.Split(name, "/")
	sysTopic := isSystem(levels)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []Subscriber
	idx.walk(idx.root, levels, 0, sysTopic, &out)
	return out
}

func (idx *Index) walk(n *node, levels []string, i int, sysTopic bool, out *[]Subscriber) {
	if n == nil {
		return
	}
	if i == len(levels) {
		for cid, opts := range n.subs {
			*out = append(*out, Subscriber{ClientID: cid, Options: opts})
		}
		// '#' matches zero levels beyond the point it was declared too.
		if n.hash != nil {
			for cid, opts := range n.hash.subs {
				*out = append(*out, Subscriber{ClientID: cid, Options: opts})
			}
		}
		return
	}

	lvl := levels[i]
	if c, ok := n.children[lvl]; ok {
		idx.walk(c, levels, i+1, sysTopic, out)
	}
	// '+' and '#' never match the first level of a $-prefixed topic.
	if i == 0 && sysTopic {
		return
	}
	if n.plus != nil {
		idx.walk(n.plus, levels, i+1, sysTopic, out)
	}
	if n.hash != nil {
		for cid, opts := range n.hash.subs {
			*out = append(*out, Subscriber{ClientID: cid, Options: opts})
		}
	}
}
