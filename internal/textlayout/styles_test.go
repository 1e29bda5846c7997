/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package textlayout

import "testing"

func TestBuiltinStylesResolve(t *testing.T) {
	for _, name := range ListStyles() {
		st, ok := GetStyle(name)
		if !ok {
			t.Fatalf("style %q listed but missing", name)
		}
		if st.Size <= 0 || st.LineHeight <= 0 {
			t.Fatalf("style %q has invalid metrics: %+v", name, st)
		}
		if _, err := Default().Face(st.Family, st.Bold, st.Italic, st.Size); err != nil {
			t.Fatalf("style %q font: %v", name, err)
		}
	}
	if _, ok := GetStyle("Nope"); ok {
		t.Fatalf("unknown style reported as present")
	}
}
