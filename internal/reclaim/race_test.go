// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package reclaim

// Record ownership moves between goroutines through atomix flags, which
// the race detector does not see.
const raceEnabled = true
