package testutil

// SamplePGN is a short decisive game with full headers, parseable by the
// PGN parser without annotations.
const SamplePGN = `[Event "Online Blitz"]
[Site "lichess.org"]
[Date "2025.03.14"]
[Round "1"]
[White "Alice"]
[Black "Bob"]
[Result "1-0"]
[WhiteElo "2400"]
[BlackElo "2350"]
[TimeControl "180+2"]
[ECO "C50"]
[Opening "Italian Game"]

1. e4 e5 2. Nf3 Nc6 3. Bc4 Bc5 4. c3 Nf6 5. d4 exd4 6. cxd4 Bb4+ 7. Nc3
Nxe4 8. O-O Nxc3 9. bxc3 Bxc3 10. Qb3 Bxa1 1-0`

// SamplePGNWithClocks carries lichess-style clock annotations so move times
// survive parsing.
const SamplePGNWithClocks = `[Event "Rated Blitz game"]
[Site "lichess.org"]
[Date "2025.03.14"]
[White "Alice"]
[Black "Bob"]
[Result "1-0"]
[WhiteElo "2400"]
[BlackElo "2350"]
[TimeControl "180+2"]

1. e4 { [%clk 0:03:00] } 1... e5 { [%clk 0:03:00] } 2. Nf3 { [%clk 0:02:58] }
2... Nc6 { [%clk 0:02:57] } 3. Bc4 { [%clk 0:02:55] } 3... Bc5 { [%clk 0:02:53] }
4. c3 { [%clk 0:02:51] } 4... Nf6 { [%clk 0:02:49] } 1-0`

// GarbagePGN fails parsing.
const GarbagePGN = "this is not a chess game at all"
