package chess

import (
	chesslib "github.com/notnil/chess"

	"github.com/turtacn/FairPlay-Intelligence/internal/domain/complexity"
	"github.com/turtacn/FairPlay-Intelligence/pkg/errors"
)

// ExtractFeatures derives the board features the complexity scorer consumes
// from a FEN position.  Every legal move lands in exactly one bucket, first
// match wins: capture, check, promotion, castling, quiet.  Material totals
// use the classic piece values (pawn 1, knight/bishop 3, rook 5, queen 9)
// and exclude kings.  KingOnCenterFile refers to the side to move.
func ExtractFeatures(fen string) (complexity.PositionFeatures, error) {
	opt, err := chesslib.FEN(fen)
	if err != nil {
		return complexity.PositionFeatures{}, errors.Wrap(err, errors.ErrCodeValidation, "invalid FEN")
	}
	pos := chesslib.NewGame(opt).Position()

	var f complexity.PositionFeatures
	valid := pos.ValidMoves()
	f.LegalMoveCount = len(valid)
	for _, mv := range valid {
		switch {
		case mv.HasTag(chesslib.Capture) || mv.HasTag(chesslib.EnPassant):
			f.Captures++
		case mv.HasTag(chesslib.Check):
			f.Checks++
		case mv.Promo() != chesslib.NoPieceType:
			f.Promotions++
		case mv.HasTag(chesslib.KingSideCastle) || mv.HasTag(chesslib.QueenSideCastle):
			f.Castling++
		default:
			f.Quiet++
		}
	}

	for sq, piece := range pos.Board().SquareMap() {
		value := pieceValue(piece.Type())
		if piece.Color() == chesslib.White {
			f.WhiteMaterial += value
		} else {
			f.BlackMaterial += value
		}
		switch piece.Type() {
		case chesslib.Pawn:
			f.PawnCount++
		case chesslib.King:
			if piece.Color() == pos.Turn() && isCenterFile(sq.File()) {
				f.KingOnCenterFile = true
			}
		}
	}
	return f, nil
}

func pieceValue(t chesslib.PieceType) int {
	switch t {
	case chesslib.Pawn:
		return 1
	case chesslib.Knight, chesslib.Bishop:
		return 3
	case chesslib.Rook:
		return 5
	case chesslib.Queen:
		return 9
	default:
		return 0
	}
}

func isCenterFile(f chesslib.File) bool {
	return f == chesslib.FileD || f == chesslib.FileE
}
