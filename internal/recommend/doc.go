// Package recommend строит подсказки по истории запусков.
//
// Recommender читает завершённые runs из БД и считает частоты:
// какие workflow запускаются чаще всего и какие стабильно падают.
// Пакет только читает историю и никак не влияет на выполнение.
package recommend
